package collab

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := newTestRegistry()
	sender := &fakeConn{}
	peer := &fakeConn{}
	reg.Connect("r1", sender, 1)
	reg.Connect("r1", peer, 2)

	reg.Broadcast("r1", websocket.BinaryMessage, []byte("hello"), sender)

	assert.Empty(t, sender.messages())
	if assert.Len(t, peer.messages(), 1) {
		assert.Equal(t, []byte("hello"), peer.messages()[0])
	}
}

func TestBroadcastToUnknownRoomIsNoop(t *testing.T) {
	reg := newTestRegistry()
	reg.Broadcast("missing", websocket.TextMessage, []byte("x"), nil)
}

func TestDisconnectTwiceIsNoop(t *testing.T) {
	reg := newTestRegistry()
	c := &fakeConn{}
	reg.Connect("r1", c, 1)

	reg.Disconnect("r1", c)
	reg.Disconnect("r1", c)

	assert.Equal(t, 0, reg.Count("r1"))
}

func TestRoomEntryRemovedWhenLastConnectionLeaves(t *testing.T) {
	reg := newTestRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	reg.Connect("r1", a, 1)
	reg.Connect("r1", b, 2)

	reg.Disconnect("r1", a)
	assert.Equal(t, 1, reg.Rooms())

	reg.Disconnect("r1", b)
	assert.Equal(t, 0, reg.Rooms())
}

func TestBroadcastDropsFailingPeer(t *testing.T) {
	reg := newTestRegistry()
	healthy := &fakeConn{}
	broken := &fakeConn{failSend: true}
	reg.Connect("r1", healthy, 1)
	reg.Connect("r1", broken, 2)

	reg.Broadcast("r1", websocket.BinaryMessage, []byte("one"), nil)

	// the broken peer is gone, the healthy one still receives
	assert.Equal(t, 1, reg.Count("r1"))
	closed, _ := broken.closedWith()
	assert.True(t, closed)

	reg.Broadcast("r1", websocket.BinaryMessage, []byte("two"), nil)
	assert.Len(t, healthy.messages(), 2)
}

func TestDisconnectUserRemovesOnlyThatUser(t *testing.T) {
	reg := newTestRegistry()
	evicteeFirst := &fakeConn{}
	evicteeSecond := &fakeConn{}
	bystander := &fakeConn{}
	reg.Connect("r1", evicteeFirst, 7)
	reg.Connect("r1", evicteeSecond, 7)
	reg.Connect("r1", bystander, 8)

	closed := reg.DisconnectUser("r1", 7)

	assert.Equal(t, 2, closed)
	assert.Equal(t, 1, reg.Count("r1"))

	for _, c := range []*fakeConn{evicteeFirst, evicteeSecond} {
		wasClosed, code := c.closedWith()
		assert.True(t, wasClosed)
		assert.Equal(t, websocket.ClosePolicyViolation, code)
	}
	wasClosed, _ := bystander.closedWith()
	assert.False(t, wasClosed)
}

func TestDisconnectUserToleratesZeroMatches(t *testing.T) {
	reg := newTestRegistry()
	c := &fakeConn{}
	reg.Connect("r1", c, 1)

	assert.Equal(t, 0, reg.DisconnectUser("r1", 99))
	assert.Equal(t, 0, reg.DisconnectUser("no-such-room", 1))
	assert.Equal(t, 1, reg.Count("r1"))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(roomID string, userID uint64, online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fmt.Sprintf("%s/%d/%t", roomID, userID, online))
}

func TestMembershipChangesTriggerNotifier(t *testing.T) {
	reg := newTestRegistry()
	notifier := &recordingNotifier{}
	reg.SetNotifier(notifier)

	c := &fakeConn{}
	reg.Connect("r1", c, 5)
	reg.Disconnect("r1", c)
	reg.Disconnect("r1", c) // no-op, must not notify again

	assert.Equal(t, []string{"r1/5/true", "r1/5/false"}, notifier.events)
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	reg := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			roomID := fmt.Sprintf("room-%d", n%5)
			c := &fakeConn{}
			reg.Connect(roomID, c, uint64(n))
			reg.Broadcast(roomID, websocket.BinaryMessage, []byte("m"), nil)
			reg.Disconnect(roomID, c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Rooms())
}
