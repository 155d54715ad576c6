package collab

import (
	"context"
	defError "errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrUnauthenticated means the bearer credential was missing, invalid
	// or expired.
	ErrUnauthenticated = defError.New("unauthenticated")
	// ErrForbidden means the user is authenticated but holds no permission
	// on the room.
	ErrForbidden = defError.New("forbidden")
	// ErrRoomNotFound means the room id resolved to nothing.
	ErrRoomNotFound = defError.New("room not found")
)

// Identity verifies a bearer credential. Satisfied by auth.Manager.
type Identity interface {
	Verify(credential string) (userID uint64, username string, err error)
}

// InviteRedeemer consumes an invite token. Satisfied by invite.Service.
type InviteRedeemer interface {
	Redeem(ctx context.Context, link, password string) (roomUUID, permissions string, err error)
}

// Permission is the result of a successful authorization, fixed for the
// lifetime of the connection it admits.
type Permission struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	RoomUUID string `json:"room_uuid"`
	Level    string `json:"permissions"`
}

// Gate resolves connection requests into granted permission levels by
// consulting the identity provider, the room directory and the grant store.
type Gate struct {
	identity Identity
	rooms    RoomDirectory
	grants   *Grants
	invites  InviteRedeemer
	log      zerolog.Logger
}

func NewGate(identity Identity, rooms RoomDirectory, grants *Grants, invites InviteRedeemer, log zerolog.Logger) *Gate {
	return &Gate{
		identity: identity,
		rooms:    rooms,
		grants:   grants,
		invites:  invites,
		log:      log,
	}
}

// Authorize resolves a credential and room id into a permission level.
// The owner is granted "owner" unconditionally; invited users get their
// stored grant; a supplied invite link and room password are redeemed as a
// fallback, writing a 24h grant on success. Re-authorizing an already
// granted user is idempotent.
func (g *Gate) Authorize(ctx context.Context, credential, roomUUID, inviteLink, roomPassword string) (*Permission, error) {
	userID, username, err := g.identity.Verify(credential)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	ownerID, _, err := g.rooms.Lookup(ctx, roomUUID)
	if err != nil {
		// the room service wraps gorm's not-found, errors.Is walks the chain
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	if ownerID == userID {
		return &Permission{UserID: userID, Username: username, RoomUUID: roomUUID, Level: "owner"}, nil
	}

	if level, ok, err := g.grants.Lookup(ctx, roomUUID, userID); err != nil {
		return nil, err
	} else if ok {
		return &Permission{UserID: userID, Username: username, RoomUUID: roomUUID, Level: level}, nil
	}

	if inviteLink != "" {
		grantedRoom, level, err := g.invites.Redeem(ctx, inviteLink, roomPassword)
		if err == nil && grantedRoom == roomUUID {
			if err := g.grants.Grant(ctx, roomUUID, userID, level); err != nil {
				return nil, err
			}
			return &Permission{UserID: userID, Username: username, RoomUUID: roomUUID, Level: level}, nil
		}
		if err != nil {
			g.log.Info().Err(err).Str("room_id", roomUUID).Uint64("user_id", userID).Str("op", "authorize").Msg("invite redemption failed")
		}
	}

	return nil, ErrForbidden
}
