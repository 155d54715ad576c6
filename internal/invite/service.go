package invite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const linkTTL = 5 * time.Minute

var (
	// ErrLinkNotFound covers absent, expired and malformed tokens alike.
	ErrLinkNotFound = errors.New("invite link not found")
	// ErrPasswordMismatch means the link resolved but the supplied room
	// password was wrong.
	ErrPasswordMismatch = errors.New("invite password mismatch")
)

// KV is the fast store that holds invite tokens for their 5 minute lifetime.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// tokenPayload is the stored token body. A structured encoding instead of a
// separator-joined string, so passwords and permissions can never collide
// with a delimiter.
type tokenPayload struct {
	RoomUUID    string `json:"room_uuid"`
	Password    string `json:"password"`
	Permissions string `json:"permissions"`
	Nonce       string `json:"nonce"`
}

// Service issues and redeems one-time invite links for rooms.
type Service struct {
	kv  KV
	log zerolog.Logger
}

func NewService(kv KV, log zerolog.Logger) *Service {
	return &Service{kv: kv, log: log}
}

// Issue creates an invite link for a room. The returned password is shared
// out of band and required at redemption. The link expires after 5 minutes.
func (s *Service) Issue(ctx context.Context, roomUUID, permissions string) (link, password string, err error) {
	password, err = generatePassword()
	if err != nil {
		return "", "", err
	}

	payload := tokenPayload{
		RoomUUID:    roomUUID,
		Password:    password,
		Permissions: permissions,
		Nonce:       uuid.NewString(),
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	link = obscure(encoded)
	if err := s.kv.Set(ctx, link, string(encoded), linkTTL); err != nil {
		return "", "", err
	}

	s.log.Info().Str("room_id", roomUUID).Str("permissions", permissions).Msg("invite link issued")
	return link, password, nil
}

// Redeem exchanges a link and its password for the room id and granted
// permissions. The token is deleted on first success (one-time use).
func (s *Service) Redeem(ctx context.Context, link, suppliedPassword string) (roomUUID, permissions string, err error) {
	stored, ok, err := s.kv.Get(ctx, link)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", ErrLinkNotFound
	}

	var payload tokenPayload
	if err := json.Unmarshal([]byte(stored), &payload); err != nil || payload.RoomUUID == "" || payload.Password == "" {
		s.log.Warn().Str("link", link).Msg("malformed invite token payload")
		return "", "", ErrLinkNotFound
	}

	if payload.Password != suppliedPassword {
		return "", "", ErrPasswordMismatch
	}

	if err := s.kv.Delete(ctx, link); err != nil {
		return "", "", err
	}

	s.log.Info().Str("room_id", payload.RoomUUID).Msg("invite link redeemed")
	return payload.RoomUUID, payload.Permissions, nil
}

// generatePassword returns a cryptographically random url-safe password.
func generatePassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// obscure derives the opaque link string from the token payload.
func obscure(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
