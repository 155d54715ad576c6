package room

import (
	"collabroom/internal/errors"
	"context"
	"encoding/json"
	defError "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const infoCacheTTL = time.Hour

// Cache is the fast store used for the room metadata snapshot.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service defines the interface for room business logic
type Service interface {
	CreateRoom(ownerID uint64, name, content string) (*Room, error)
	GetOwnedRoom(roomUUID string, ownerID uint64) (*Room, error)
	ListOwned(ownerID uint64) ([]Room, error)
	UpdateRoom(roomUUID string, ownerID uint64, name, content *string) (*Room, error)

	// GetInfo is a read-through of the room snapshot cached under
	// "room:{room_uuid}" with a 1 hour TTL.
	GetInfo(ctx context.Context, roomUUID string) (*Info, error)

	// Lookup resolves a room's owner and current content for the
	// collaboration core.
	Lookup(ctx context.Context, roomUUID string) (ownerID uint64, content string, err error)
}

type DefaultService struct {
	repository RoomRepository
	cache      Cache
	log        zerolog.Logger
}

// NewService creates a new room service
func NewService(repository RoomRepository, cache Cache, log zerolog.Logger) Service {
	return &DefaultService{repository: repository, cache: cache, log: log}
}

func (s *DefaultService) CreateRoom(ownerID uint64, name, content string) (*Room, error) {
	room := &Room{
		RoomUUID: uuid.NewString(),
		OwnerID:  ownerID,
		Name:     name,
		Content:  content,
	}
	if err := s.repository.Create(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *DefaultService) GetOwnedRoom(roomUUID string, ownerID uint64) (*Room, error) {
	room, err := s.repository.FindByUUID(roomUUID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Room not found", err)
		}
		return nil, err
	}
	if room.OwnerID != ownerID {
		return nil, errors.Forbidden("Not the room owner", nil)
	}
	return room, nil
}

func (s *DefaultService) ListOwned(ownerID uint64) ([]Room, error) {
	return s.repository.ListByOwner(ownerID)
}

func (s *DefaultService) UpdateRoom(roomUUID string, ownerID uint64, name, content *string) (*Room, error) {
	if _, err := s.GetOwnedRoom(roomUUID, ownerID); err != nil {
		return nil, err
	}

	room, err := s.repository.Update(roomUUID, name, content)
	if err != nil {
		return nil, err
	}

	// drop the stale snapshot so the next read-through picks up the change
	if err := s.cache.Delete(context.Background(), infoKey(roomUUID)); err != nil {
		s.log.Warn().Err(err).Str("room_id", roomUUID).Msg("failed to invalidate room cache")
	}

	return room, nil
}

func (s *DefaultService) GetInfo(ctx context.Context, roomUUID string) (*Info, error) {
	key := infoKey(roomUUID)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("room_id", roomUUID).Msg("room cache read failed")
	}
	if ok {
		var info Info
		if err := json.Unmarshal([]byte(cached), &info); err == nil {
			return &info, nil
		}
		s.log.Warn().Str("room_id", roomUUID).Msg("corrupt room snapshot in cache, reloading")
	}

	room, err := s.repository.FindByUUID(roomUUID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Room not found", err)
		}
		return nil, err
	}

	info := room.ToInfo()
	if encoded, err := json.Marshal(info); err == nil {
		if err := s.cache.Set(ctx, key, string(encoded), infoCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("room_id", roomUUID).Msg("room cache write failed")
		}
	}

	return &info, nil
}

func (s *DefaultService) Lookup(ctx context.Context, roomUUID string) (uint64, string, error) {
	info, err := s.GetInfo(ctx, roomUUID)
	if err != nil {
		return 0, "", err
	}
	return info.OwnerID, info.Content, nil
}

func infoKey(roomUUID string) string {
	return "room:" + roomUUID
}
