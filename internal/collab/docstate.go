package collab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	historyLimit    = 10
	docReadThruTTL  = time.Hour
	docKeyPrefix    = "doc:"
	timestampLayout = time.RFC3339
)

// DocumentState is the versioned document content cached under
// "doc:{room_uuid}". Version increases by exactly one per write and history
// keeps at most the 10 most recent prior snapshots, oldest dropped first.
type DocumentState struct {
	Content        string            `json:"content"`
	Version        int64             `json:"version"`
	LastModifiedBy uint64            `json:"last_modified_by,omitempty"`
	LastModifiedAt string            `json:"last_modified_at,omitempty"`
	History        []DocumentHistory `json:"history"`
}

// DocumentHistory is one prior snapshot of the document.
type DocumentHistory struct {
	Content    string `json:"content"`
	Version    int64  `json:"version"`
	ModifiedBy uint64 `json:"modified_by,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// RoomDirectory resolves durable room records; the document store uses it
// to seed the cache on a miss.
type RoomDirectory interface {
	Lookup(ctx context.Context, roomUUID string) (ownerID uint64, content string, err error)
}

// DocumentStore keeps versioned document state in the fast store. Writes to
// the same room are serialized through a per-room lock, so versions never
// collide within this process. Concurrent writers still race under
// last-writer-wins semantics: the final content is one writer's, with the
// other's preserved in history. That is accepted behavior, not a bug.
type DocumentStore struct {
	kv    KV
	rooms RoomDirectory
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDocumentStore(kv KV, rooms RoomDirectory, log zerolog.Logger) *DocumentStore {
	return &DocumentStore{
		kv:    kv,
		rooms: rooms,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// Read returns the room's document state. On a cache miss the durable room
// content is fetched, wrapped in a version-0 state and cached for an hour.
func (s *DocumentStore) Read(ctx context.Context, roomUUID string) (*DocumentState, error) {
	if state, ok := s.readCached(ctx, roomUUID); ok {
		return state, nil
	}

	_, content, err := s.rooms.Lookup(ctx, roomUUID)
	if err != nil {
		return nil, err
	}

	state := &DocumentState{
		Content: content,
		Version: 0,
		History: []DocumentHistory{},
	}

	if encoded, err := json.Marshal(state); err == nil {
		if err := s.kv.Set(ctx, docKey(roomUUID), string(encoded), docReadThruTTL); err != nil {
			s.log.Warn().Err(err).Str("room_id", roomUUID).Str("op", "doc_read").Msg("cache write failed")
		}
	}

	return state, nil
}

// Write stores new content under the next version, pushing the pre-write
// snapshot onto history. The stored state has no TTL; it lives until the
// next write overwrites it.
func (s *DocumentStore) Write(ctx context.Context, roomUUID string, userID uint64, content string) (*DocumentState, error) {
	lock := s.roomLock(roomUUID)
	lock.Lock()
	defer lock.Unlock()

	current, ok := s.readCached(ctx, roomUUID)
	if !ok {
		current = &DocumentState{Content: "", Version: 0, History: []DocumentHistory{}}
	}

	history := append(current.History, DocumentHistory{
		Content:    current.Content,
		Version:    current.Version,
		ModifiedBy: current.LastModifiedBy,
		ModifiedAt: current.LastModifiedAt,
	})
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	updated := &DocumentState{
		Content:        content,
		Version:        current.Version + 1,
		LastModifiedBy: userID,
		LastModifiedAt: time.Now().UTC().Format(timestampLayout),
		History:        history,
	}

	encoded, err := json.Marshal(updated)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, docKey(roomUUID), string(encoded), 0); err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *DocumentStore) readCached(ctx context.Context, roomUUID string) (*DocumentState, bool) {
	raw, ok, err := s.kv.Get(ctx, docKey(roomUUID))
	if err != nil {
		s.log.Warn().Err(err).Str("room_id", roomUUID).Str("op", "doc_read").Msg("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var state DocumentState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.log.Warn().Err(err).Str("room_id", roomUUID).Str("op", "doc_read").Msg("corrupt document state in cache")
		return nil, false
	}
	if state.History == nil {
		state.History = []DocumentHistory{}
	}
	return &state, true
}

func (s *DocumentStore) roomLock(roomUUID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[roomUUID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[roomUUID] = lock
	}
	return lock
}

func docKey(roomUUID string) string {
	return docKeyPrefix + roomUUID
}
