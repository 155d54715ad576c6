package collab

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Conn is a live client connection as the registry sees it.
type Conn interface {
	Send(messageType int, payload []byte) error
	Close(code int, reason string) error
}

// Notifier receives membership changes. Implementations must not block the
// calling connect/disconnect path.
type Notifier interface {
	Notify(roomID string, userID uint64, online bool)
}

// roomState holds one room's live connections behind its own lock, so
// activity in one room never contends with another.
type roomState struct {
	mu     sync.Mutex
	closed bool
	conns  map[Conn]uint64
}

// Registry tracks which connections are in which room and fans messages out
// to them. The top-level map is guarded by mu; each room's membership is
// guarded by the room's own lock.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*roomState
	notifier Notifier
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*roomState),
		log:   log,
	}
}

// SetNotifier wires the presence notifier. Must be called before the first
// connection is admitted.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

// Connect admits a connection into a room, creating the room entry if
// absent.
func (r *Registry) Connect(roomID string, c Conn, userID uint64) {
	for {
		r.mu.Lock()
		room, ok := r.rooms[roomID]
		if !ok {
			room = &roomState{conns: make(map[Conn]uint64)}
			r.rooms[roomID] = room
		}
		r.mu.Unlock()

		room.mu.Lock()
		if room.closed {
			// lost a race with the last disconnect, re-resolve the entry
			room.mu.Unlock()
			continue
		}
		room.conns[c] = userID
		room.mu.Unlock()
		break
	}

	r.log.Info().Str("room_id", roomID).Uint64("user_id", userID).Msg("connection joined room")
	if r.notifier != nil {
		r.notifier.Notify(roomID, userID, true)
	}
}

// Disconnect removes a connection from a room. Calling it for a connection
// that is already gone is a no-op. The room entry is dropped when its last
// connection leaves.
func (r *Registry) Disconnect(roomID string, c Conn) {
	r.mu.RLock()
	room := r.rooms[roomID]
	r.mu.RUnlock()
	if room == nil {
		return
	}

	room.mu.Lock()
	userID, present := room.conns[c]
	if !present {
		room.mu.Unlock()
		return
	}
	delete(room.conns, c)
	empty := len(room.conns) == 0
	room.mu.Unlock()

	if empty {
		r.mu.Lock()
		room.mu.Lock()
		if len(room.conns) == 0 && r.rooms[roomID] == room {
			room.closed = true
			delete(r.rooms, roomID)
		}
		room.mu.Unlock()
		r.mu.Unlock()
	}

	r.log.Info().Str("room_id", roomID).Uint64("user_id", userID).Msg("connection left room")
	if r.notifier != nil {
		r.notifier.Notify(roomID, userID, false)
	}
}

type target struct {
	conn   Conn
	userID uint64
}

// Broadcast sends payload to every connection in the room except exclude.
// Membership is snapshotted before sending, so concurrent joins and leaves
// never corrupt the iteration. A connection whose send fails is dropped
// from the room after the sweep; one bad peer never blocks the rest.
func (r *Registry) Broadcast(roomID string, messageType int, payload []byte, exclude Conn) {
	r.mu.RLock()
	room := r.rooms[roomID]
	r.mu.RUnlock()
	if room == nil {
		return
	}

	room.mu.Lock()
	targets := make([]target, 0, len(room.conns))
	for c, uid := range room.conns {
		if c == exclude {
			continue
		}
		targets = append(targets, target{conn: c, userID: uid})
	}
	room.mu.Unlock()

	var failed []target
	for _, t := range targets {
		if err := t.conn.Send(messageType, payload); err != nil {
			r.log.Warn().Err(err).
				Str("room_id", roomID).
				Uint64("user_id", t.userID).
				Str("op", "broadcast").
				Msg("send failed, dropping connection")
			failed = append(failed, t)
		}
	}

	for _, t := range failed {
		_ = t.conn.Close(websocket.CloseGoingAway, "send failed")
		r.Disconnect(roomID, t.conn)
	}
}

// DisconnectUser closes every connection in the room belonging to userID
// with a policy-violation code and removes them. Returns the number of
// connections closed; zero matches is not an error.
func (r *Registry) DisconnectUser(roomID string, userID uint64) int {
	r.mu.RLock()
	room := r.rooms[roomID]
	r.mu.RUnlock()
	if room == nil {
		return 0
	}

	room.mu.Lock()
	var matches []Conn
	for c, uid := range room.conns {
		if uid == userID {
			matches = append(matches, c)
		}
	}
	room.mu.Unlock()

	for _, c := range matches {
		if err := c.Close(websocket.ClosePolicyViolation, "access revoked"); err != nil {
			r.log.Warn().Err(err).
				Str("room_id", roomID).
				Uint64("user_id", userID).
				Str("op", "disconnect_user").
				Msg("error closing connection")
		}
		r.Disconnect(roomID, c)
	}

	return len(matches)
}

// Count returns the number of live connections in a room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	room := r.rooms[roomID]
	r.mu.RUnlock()
	if room == nil {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.conns)
}

// Rooms returns the number of rooms with at least one live connection.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
