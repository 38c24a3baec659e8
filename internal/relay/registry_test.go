// ABOUTME: Tests for the connection registry
// ABOUTME: Covers registration, overwrite, release, room cleanup, broadcast and pruning

package relay

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/store"
)

// fakeConn records delivered messages and optionally fails every send.
type fakeConn struct {
	mu       sync.Mutex
	received []*store.Message
	err      error
}

func (c *fakeConn) Send(msg *store.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.received = append(c.received, msg)
	return nil
}

func (c *fakeConn) messages() []*store.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*store.Message, len(c.received))
	copy(out, c.received)
	return out
}

func testMessage(room, content string) *store.Message {
	return &store.Message{Room: room, Sender: "human", Content: content, Type: store.MessageTypeChat, Timestamp: "2024-01-01T00:00:00.000000+00:00"}
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("g", "a2", &fakeConn{})
	r.Register("g", "a1", &fakeConn{})
	r.Register("other", "a3", &fakeConn{})

	assert.Equal(t, []string{"a1", "a2"}, r.Agents("g"))
	assert.Equal(t, []string{"a3"}, r.Agents("other"))
	assert.Equal(t, 2, r.Rooms())
}

func TestRegistry_UnknownRoomIsEmpty(t *testing.T) {
	r := NewRegistry(nil)

	agents := r.Agents("nowhere")
	require.NotNil(t, agents)
	assert.Empty(t, agents)
}

func TestRegistry_UnregisterDropsEmptyRoom(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("g", "a1", &fakeConn{})
	r.Register("g", "a2", &fakeConn{})

	r.Unregister("g", "a2")
	assert.Equal(t, []string{"a1"}, r.Agents("g"))
	assert.Equal(t, 1, r.Rooms())

	r.Unregister("g", "a1")
	assert.Empty(t, r.Agents("g"))
	assert.Equal(t, 0, r.Rooms(), "empty room should be removed")

	// Unregistering something absent is harmless
	r.Unregister("g", "a1")
	r.Unregister("missing", "x")
}

// Re-registering a name replaces the entry and leaves the old connection
// untouched. The replaced connection no longer receives broadcasts.
func TestRegistry_ReRegisterOverwritesWithoutClosing(t *testing.T) {
	r := NewRegistry(nil)
	old := &fakeConn{}
	fresh := &fakeConn{}

	assert.False(t, r.Register("g", "a1", old))
	assert.True(t, r.Register("g", "a1", fresh))
	assert.Equal(t, []string{"a1"}, r.Agents("g"))

	delivered, pruned := r.Broadcast("g", testMessage("g", "hello"))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, pruned)
	assert.Empty(t, old.messages())
	assert.Len(t, fresh.messages(), 1)
}

func TestRegistry_ReleaseOnlyRemovesMatchingConn(t *testing.T) {
	r := NewRegistry(nil)
	old := &fakeConn{}
	fresh := &fakeConn{}

	r.Register("g", "a1", old)
	r.Register("g", "a1", fresh)

	// The stale connection going away must not evict its replacement
	assert.False(t, r.Release("g", "a1", old))
	assert.Equal(t, []string{"a1"}, r.Agents("g"))

	assert.True(t, r.Release("g", "a1", fresh))
	assert.Empty(t, r.Agents("g"))
}

func TestRegistry_BroadcastPartialFailure(t *testing.T) {
	r := NewRegistry(nil)
	good := &fakeConn{}
	bad := &fakeConn{err: errors.New("broken pipe")}

	r.Register("g", "good", good)
	r.Register("g", "bad", bad)

	delivered, pruned := r.Broadcast("g", testMessage("g", "hi"))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, pruned)
	require.Len(t, good.messages(), 1)
	assert.Equal(t, "hi", good.messages()[0].Content)
	assert.Equal(t, []string{"good"}, r.Agents("g"))
}

func TestRegistry_BroadcastAllFailDropsRoom(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("g", "x", &fakeConn{err: errors.New("closed")})

	r.Broadcast("g", testMessage("g", "hi"))

	assert.Equal(t, 0, r.Rooms())
}

func TestRegistry_BroadcastRoomIsolation(t *testing.T) {
	r := NewRegistry(nil)
	inRoom := &fakeConn{}
	elsewhere := &fakeConn{}

	r.Register("g", "a", inRoom)
	r.Register("h", "b", elsewhere)

	r.Broadcast("g", testMessage("g", "only g"))

	assert.Len(t, inRoom.messages(), 1)
	assert.Empty(t, elsewhere.messages())
}

func TestRegistry_BroadcastUnknownRoom(t *testing.T) {
	r := NewRegistry(nil)

	delivered, pruned := r.Broadcast("ghost", testMessage("ghost", "hello?"))
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, pruned)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("p%d", i)
			conn := &fakeConn{}
			r.Register("g", name, conn)
			r.Broadcast("g", testMessage("g", name))
			r.Agents("g")
			r.Release("g", name, conn)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Rooms())
}
