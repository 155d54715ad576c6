package collab

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	ownerID uint64
	content string
	err     error
	lookups atomic.Int64
}

func (d *fakeDirectory) Lookup(context.Context, string) (uint64, string, error) {
	d.lookups.Add(1)
	if d.err != nil {
		return 0, "", d.err
	}
	return d.ownerID, d.content, nil
}

func newTestDocStore(dir *fakeDirectory) (*DocumentStore, *fakeKV) {
	kv := newFakeKV()
	return NewDocumentStore(kv, dir, zerolog.Nop()), kv
}

func TestReadSynthesizesStateFromDurableContent(t *testing.T) {
	dir := &fakeDirectory{ownerID: 1, content: "seed"}
	store, _ := newTestDocStore(dir)

	state, err := store.Read(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "seed", state.Content)
	assert.Equal(t, int64(0), state.Version)
	assert.Empty(t, state.History)

	// second read comes from the cache
	_, err = store.Read(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), dir.lookups.Load())
}

func TestWriteIncrementsVersionByOne(t *testing.T) {
	store, _ := newTestDocStore(&fakeDirectory{})

	for i := 1; i <= 5; i++ {
		state, err := store.Write(context.Background(), "r1", 9, fmt.Sprintf("v%d", i))
		require.NoError(t, err)
		assert.Equal(t, int64(i), state.Version)
	}
}

func TestWritePushesPriorSnapshotOntoHistory(t *testing.T) {
	store, _ := newTestDocStore(&fakeDirectory{})

	_, err := store.Write(context.Background(), "r1", 1, "A")
	require.NoError(t, err)
	state, err := store.Write(context.Background(), "r1", 2, "B")
	require.NoError(t, err)

	assert.Equal(t, "B", state.Content)
	assert.Equal(t, int64(2), state.Version)
	require.Len(t, state.History, 2)
	last := state.History[len(state.History)-1]
	assert.Equal(t, "A", last.Content)
	assert.Equal(t, int64(1), last.Version)
	assert.Equal(t, uint64(1), last.ModifiedBy)
}

func TestHistoryNeverExceedsLimit(t *testing.T) {
	store, _ := newTestDocStore(&fakeDirectory{})

	var state *DocumentState
	var err error
	for i := 0; i < 25; i++ {
		state, err = store.Write(context.Background(), "r1", 3, fmt.Sprintf("content-%d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(state.History), historyLimit)
	}

	require.Len(t, state.History, historyLimit)
	// oldest snapshots were dropped first
	assert.Equal(t, int64(14), state.History[0].Version)
	assert.Equal(t, int64(23), state.History[historyLimit-1].Version)
}

func TestConcurrentWritersGetDistinctVersions(t *testing.T) {
	store, _ := newTestDocStore(&fakeDirectory{})

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Write(context.Background(), "r1", uint64(n), fmt.Sprintf("w%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := store.Read(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), state.Version)
}

func TestWritesToDifferentRoomsAreIndependent(t *testing.T) {
	store, _ := newTestDocStore(&fakeDirectory{})

	s1, err := store.Write(context.Background(), "r1", 1, "one")
	require.NoError(t, err)
	s2, err := store.Write(context.Background(), "r2", 1, "two")
	require.NoError(t, err)

	assert.Equal(t, int64(1), s1.Version)
	assert.Equal(t, int64(1), s2.Version)
}
