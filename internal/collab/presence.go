package collab

import (
	"collabroom/internal/worker"
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PresenceEvent is sent to every member of a room when membership changes.
type PresenceEvent struct {
	Type      string `json:"type"`
	UserID    uint64 `json:"user_id"`
	IsOnline  bool   `json:"is_online"`
	Timestamp string `json:"timestamp"`
}

// TaskRunner runs fire-and-forget jobs off the connect/disconnect path.
type TaskRunner interface {
	Submit(t worker.Task)
}

// Presence broadcasts join/leave events to a room's members. Delivery is
// asynchronous; failures are logged and never reach the triggering
// connect or disconnect call.
type Presence struct {
	registry *Registry
	runner   TaskRunner
	log      zerolog.Logger
}

func NewPresence(registry *Registry, runner TaskRunner, log zerolog.Logger) *Presence {
	return &Presence{registry: registry, runner: runner, log: log}
}

func (p *Presence) Notify(roomID string, userID uint64, online bool) {
	event := PresenceEvent{
		Type:      "presence",
		UserID:    userID,
		IsOnline:  online,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("room_id", roomID).Uint64("user_id", userID).Msg("presence encode failed")
		return
	}

	p.runner.Submit(func(ctx context.Context) error {
		// all members see the event, including the user's other connections
		p.registry.Broadcast(roomID, websocket.TextMessage, payload, nil)
		return nil
	})
}
