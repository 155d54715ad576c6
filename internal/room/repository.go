package room

import (
	"time"

	"gorm.io/gorm"
)

// RoomRepository defines the interface for room data access
type RoomRepository interface {
	Create(room *Room) error
	FindByUUID(roomUUID string) (*Room, error)
	ListByOwner(ownerID uint64) ([]Room, error)
	Update(roomUUID string, name, content *string) (*Room, error)
}

type RoomRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new room repository
func NewRepository(db *gorm.DB) RoomRepository {
	return &RoomRepositoryImpl{db: db}
}

func (r *RoomRepositoryImpl) Create(room *Room) error {
	room.CreatedAt = time.Now().UTC()
	room.UpdatedAt = room.CreatedAt
	return r.db.Create(room).Error
}

func (r *RoomRepositoryImpl) FindByUUID(roomUUID string) (*Room, error) {
	var room Room
	err := r.db.Where("room_uuid = ?", roomUUID).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepositoryImpl) ListByOwner(ownerID uint64) ([]Room, error) {
	var rooms []Room
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *RoomRepositoryImpl) Update(roomUUID string, name, content *string) (*Room, error) {
	room, err := r.FindByUUID(roomUUID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		room.Name = *name
	}
	if content != nil {
		room.Content = *content
	}
	room.UpdatedAt = time.Now().UTC()

	if err := r.db.Save(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}
