package db

import (
	"collabroom/internal/room"
	"collabroom/internal/user"
	"log"

	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(gormDB *gorm.DB) {
	err := gormDB.AutoMigrate(
		&user.User{},
		&room.Room{},
	)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}
