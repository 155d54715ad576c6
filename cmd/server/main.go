package main

import (
	"collabroom/internal/auth"
	"collabroom/internal/collab"
	"collabroom/internal/config"
	"collabroom/internal/db"
	"collabroom/internal/invite"
	"collabroom/internal/middleware"
	"collabroom/internal/room"
	"collabroom/internal/user"
	"collabroom/internal/worker"
	"collabroom/redis"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var allowedPermissions = map[string]bool{
	"edit": true,
	"view": true,
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	config.LoadConfig()

	// Connect to database
	gormDB, err := db.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("error connecting to db")
	}
	defer db.Close(gormDB)

	// Migrate database schema
	db.Migrate(gormDB)

	// Connect to Redis (fast store)
	store, err := redis.New(config.AppConfig.RedisAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("error connecting to redis")
	}
	defer store.Close()

	tokens := auth.NewManager(config.AppConfig.JWTSecret)
	pool := worker.NewWorkerPool(4, logger)

	// Initialize repositories and services
	userRepo := user.NewRepository(gormDB)
	userService := user.NewService(userRepo)
	roomRepo := room.NewRepository(gormDB)
	roomService := room.NewService(roomRepo, store, logger)
	inviteService := invite.NewService(store, logger)

	// Collaboration core
	grants := collab.NewGrants(store)
	gate := collab.NewGate(tokens, roomService, grants, inviteService, logger)
	registry := collab.NewRegistry(logger)
	registry.SetNotifier(collab.NewPresence(registry, pool, logger))
	docs := collab.NewDocumentStore(store, roomService, logger)

	// Initialize handlers
	userHandler := user.NewHandler(userService, tokens)
	roomHandler := room.NewHandler(roomService, inviteService, grants, gate, registry, userService)
	collabHandler := collab.NewHandler(gate, registry, docs, logger)

	authMW := middleware.Auth{Tokens: tokens}

	// Register custom validation for permission levels
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("permission", func(fl validator.FieldLevel) bool {
			return allowedPermissions[fl.Field().String()]
		})
	}

	// Initialize Gin router
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler(logger))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}
	if config.AppConfig.Environment == "development" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.GET("/profile", authMW.AuthMiddleWare(), userHandler.GetProfile)

	// Room routes
	router.POST("/rooms", authMW.AuthMiddleWare(), roomHandler.Create)
	router.GET("/rooms", authMW.AuthMiddleWare(), roomHandler.MyRooms)
	router.GET("/rooms/:uuid", authMW.AuthMiddleWare(), roomHandler.Show)
	router.PATCH("/rooms/:uuid", authMW.AuthMiddleWare(), roomHandler.Update)
	router.POST("/rooms/:uuid/invite", authMW.AuthMiddleWare(), roomHandler.Invite)
	router.DELETE("/rooms/:uuid/invited", authMW.AuthMiddleWare(), roomHandler.RemoveInvited)
	router.POST("/rooms/join/:link", authMW.AuthMiddleWare(), roomHandler.Join)
	router.POST("/rooms/access", authMW.AuthMiddleWare(), roomHandler.Access)

	// Collaboration websocket (authorization happens inside the handler)
	router.GET("/ws/collaborate", collabHandler.Collaborate)

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		logger.Info().Str("port", serverPort).Msg("server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	pool.Shutdown()
	logger.Info().Msg("server shutdown complete")
}
