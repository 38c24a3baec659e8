// ABOUTME: Tests for the WebSocket endpoint using real connections against an httptest server
// ABOUTME: Covers presence lifecycle, echo to the sender, HTTP-to-socket fan-out and shutdown

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/store"
)

func newTestServer(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return gw, srv
}

func dial(t *testing.T, srv *httptest.Server, room, agent string) *websocket.Conn {
	t.Helper()

	q := url.Values{}
	q.Set("room", room)
	if agent != "" {
		q.Set("agent", agent)
	}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) store.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg store.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForAgents(t *testing.T, gw *Gateway, room string, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Equal(gw.Relay().ListAgents(room), want)
	}, 2*time.Second, 10*time.Millisecond, "agents in %s never became %v", room, want)
}

func TestWebSocket_PresenceLifecycle(t *testing.T) {
	gw, srv := newTestServer(t)

	a1 := dial(t, srv, "r", "a1")
	dial(t, srv, "r", "a2")
	waitForAgents(t, gw, "r", "a1", "a2")

	resp, err := http.Get(srv.URL + "/api/agents?room=r")
	require.NoError(t, err)
	defer resp.Body.Close()
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, []string{"a1", "a2"}, names)

	require.NoError(t, a1.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	waitForAgents(t, gw, "r", "a2")
}

func TestWebSocket_DefaultsToHuman(t *testing.T) {
	gw, srv := newTestServer(t)

	dial(t, srv, "r", "")
	waitForAgents(t, gw, "r", "human")
}

func TestWebSocket_EchoesToSenderAndRoom(t *testing.T) {
	gw, srv := newTestServer(t)

	a1 := dial(t, srv, "r", "a1")
	a2 := dial(t, srv, "r", "a2")
	other := dial(t, srv, "elsewhere", "a3")
	waitForAgents(t, gw, "r", "a1", "a2")
	waitForAgents(t, gw, "elsewhere", "a3")

	require.NoError(t, a1.WriteJSON(map[string]string{"message": "hi"}))

	for _, conn := range []*websocket.Conn{a1, a2} {
		msg := readMessage(t, conn)
		assert.Equal(t, "r", msg.Room)
		assert.Equal(t, "a1", msg.Sender)
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, store.MessageTypeChat, msg.Type)
		assert.Regexp(t, stampPattern, msg.Timestamp)
	}

	// Nothing crosses rooms
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)

	msgs, err := gw.Relay().ListMessages(context.Background(), "r", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestWebSocket_ReceivesHTTPPosts(t *testing.T) {
	gw, srv := newTestServer(t)

	conn := dial(t, srv, "r", "a1")
	waitForAgents(t, gw, "r", "a1")

	resp, err := http.Post(srv.URL+"/api/message", "application/json",
		strings.NewReader(`{"room":"r","sender":"human","message":"from http"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := readMessage(t, conn)
	assert.Equal(t, "human", msg.Sender)
	assert.Equal(t, "from http", msg.Content)
}

func TestWebSocket_FrameOverridesRoomAndSender(t *testing.T) {
	gw, srv := newTestServer(t)

	a1 := dial(t, srv, "r", "a1")
	watcher := dial(t, srv, "side", "watcher")
	waitForAgents(t, gw, "r", "a1")
	waitForAgents(t, gw, "side", "watcher")

	require.NoError(t, a1.WriteJSON(map[string]string{
		"room":    "side",
		"sender":  "Alice",
		"message": "joined",
		"type":    "system",
	}))

	msg := readMessage(t, watcher)
	assert.Equal(t, "side", msg.Room)
	assert.Equal(t, "Alice", msg.Sender)
	assert.Equal(t, store.MessageTypeSystem, msg.Type)
}

func TestWebSocket_InvalidTypeIsDropped(t *testing.T) {
	gw, srv := newTestServer(t)

	a1 := dial(t, srv, "r", "a1")
	waitForAgents(t, gw, "r", "a1")

	require.NoError(t, a1.WriteJSON(map[string]string{"message": "bad", "type": "shout"}))
	require.NoError(t, a1.WriteJSON(map[string]string{"message": "good"}))

	msg := readMessage(t, a1)
	assert.Equal(t, "good", msg.Content, "connection survives a rejected frame")
}

func TestWebSocket_MalformedFrameClosesConnection(t *testing.T) {
	gw, srv := newTestServer(t)

	a1 := dial(t, srv, "r", "a1")
	waitForAgents(t, gw, "r", "a1")

	require.NoError(t, a1.WriteMessage(websocket.TextMessage, []byte("not json")))

	require.NoError(t, a1.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := a1.ReadMessage()
	require.Error(t, err)
	waitForAgents(t, gw, "r")
}

func TestWebSocket_RequiresRoom(t *testing.T) {
	_, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_ReconnectReplacesEntry(t *testing.T) {
	gw, srv := newTestServer(t)

	first := dial(t, srv, "r", "a1")
	waitForAgents(t, gw, "r", "a1")
	second := dial(t, srv, "r", "a1")
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/message", "application/json",
		strings.NewReader(`{"room":"r","sender":"human","message":"ping"}`))
	require.NoError(t, err)
	resp.Body.Close()

	msg := readMessage(t, second)
	assert.Equal(t, "ping", msg.Content)

	// Release is owner-checked: closing the stale socket must not evict its
	// replacement, unlike a plain delete by name.
	require.NoError(t, first.Close())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"a1"}, gw.Relay().ListAgents("r"))

	resp, err = http.Post(srv.URL+"/api/message", "application/json",
		strings.NewReader(`{"room":"r","sender":"human","message":"still there"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "still there", readMessage(t, second).Content)
}

func TestShutdown_ClosesSockets(t *testing.T) {
	gw, err := New(testConfig(), testLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dial(t, srv, "r", "a1")
	waitForAgents(t, gw, "r", "a1")

	require.NoError(t, gw.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
