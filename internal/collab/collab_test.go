package collab

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeKV is an in-memory stand-in for the redis-backed fast store, with
// TTL support so expiry behavior can be exercised.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]kvEntry
}

type kvEntry struct {
	value     string
	expiresAt time.Time
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]kvEntry)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.data[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(f.data, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := kvEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	f.data[key] = entry
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// fakeConn records what the registry sends to it.
type fakeConn struct {
	mu        sync.Mutex
	sent      [][]byte
	failSend  bool
	closed    bool
	closeCode int
}

func (c *fakeConn) Send(_ int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("send failed")
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.sent = append(c.sent, buf)
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) closedWith() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}
