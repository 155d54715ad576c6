package collab

import (
	"context"
	"time"
)

// KV is the fast key/value store backing granted permissions and cached
// document state. Satisfied by redis.Client.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
