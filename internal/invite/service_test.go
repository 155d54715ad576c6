package invite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newTestService() (*Service, *fakeKV) {
	kv := newFakeKV()
	return NewService(kv, zerolog.Nop()), kv
}

func TestIssueAndRedeem(t *testing.T) {
	svc, _ := newTestService()

	link, password, err := svc.Issue(context.Background(), "r1", "edit")
	require.NoError(t, err)
	assert.NotEmpty(t, link)
	assert.NotEmpty(t, password)

	roomUUID, permissions, err := svc.Redeem(context.Background(), link, password)
	require.NoError(t, err)
	assert.Equal(t, "r1", roomUUID)
	assert.Equal(t, "edit", permissions)
}

func TestRedeemIsOneTimeUse(t *testing.T) {
	svc, _ := newTestService()

	link, password, err := svc.Issue(context.Background(), "r1", "edit")
	require.NoError(t, err)

	_, _, err = svc.Redeem(context.Background(), link, password)
	require.NoError(t, err)

	_, _, err = svc.Redeem(context.Background(), link, password)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRedeemRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService()

	link, password, err := svc.Issue(context.Background(), "r1", "edit")
	require.NoError(t, err)

	_, _, err = svc.Redeem(context.Background(), link, "wrong")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	// a failed attempt does not consume the token
	_, _, err = svc.Redeem(context.Background(), link, password)
	assert.NoError(t, err)
}

func TestRedeemUnknownLink(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.Redeem(context.Background(), "no-such-link", "pwd")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRedeemExpiredLink(t *testing.T) {
	svc, kv := newTestService()

	link, password, err := svc.Issue(context.Background(), "r1", "view")
	require.NoError(t, err)

	// force the entry to expire
	kv.mu.Lock()
	entry := kv.data[link]
	entry.expiresAt = time.Now().Add(-time.Second)
	kv.data[link] = entry
	kv.mu.Unlock()

	_, _, err = svc.Redeem(context.Background(), link, password)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRedeemMalformedPayload(t *testing.T) {
	svc, kv := newTestService()

	require.NoError(t, kv.Set(context.Background(), "bad-link", "not-json", 0))

	_, _, err := svc.Redeem(context.Background(), "bad-link", "pwd")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestIssuedLinksAreUnique(t *testing.T) {
	svc, _ := newTestService()

	linkA, _, err := svc.Issue(context.Background(), "r1", "edit")
	require.NoError(t, err)
	linkB, _, err := svc.Issue(context.Background(), "r1", "edit")
	require.NoError(t, err)

	assert.NotEqual(t, linkA, linkB)
}
