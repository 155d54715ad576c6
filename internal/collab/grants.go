package collab

import (
	"context"
	"fmt"
	"time"
)

const grantTTL = 24 * time.Hour

// Grants stores the permissions invited users hold on rooms, keyed by
// "{room_uuid}:{user_id}" with a 24 hour TTL. The owner never needs an
// entry here.
type Grants struct {
	kv KV
}

func NewGrants(kv KV) *Grants {
	return &Grants{kv: kv}
}

// Grant records a permission for a user on a room, refreshing the TTL.
func (g *Grants) Grant(ctx context.Context, roomUUID string, userID uint64, permission string) error {
	return g.kv.Set(ctx, grantKey(roomUUID, userID), permission, grantTTL)
}

// Lookup returns the user's granted permission on a room, if any.
func (g *Grants) Lookup(ctx context.Context, roomUUID string, userID uint64) (permission string, ok bool, err error) {
	return g.kv.Get(ctx, grantKey(roomUUID, userID))
}

// Revoke removes a user's grant. Revoking an absent grant is a no-op.
func (g *Grants) Revoke(ctx context.Context, roomUUID string, userID uint64) error {
	return g.kv.Delete(ctx, grantKey(roomUUID, userID))
}

func grantKey(roomUUID string, userID uint64) string {
	return fmt.Sprintf("%s:%d", roomUUID, userID)
}
