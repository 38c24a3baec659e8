// ABOUTME: WebSocket endpoint that attaches participants to the relay
// ABOUTME: wsPeer adapts a gorilla connection to relay.Peer with serialized, deadline-bound writes

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/agentchat/internal/relay"
	"github.com/2389/agentchat/internal/store"
)

// wsPeer is one participant's WebSocket connection.
type wsPeer struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSPeer(conn *websocket.Conn, readLimit int64, writeTimeout time.Duration) *wsPeer {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &wsPeer{
		id:           uuid.New().String(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Send writes msg as one JSON text frame.
func (p *wsPeer) Send(msg *store.Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.writeTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return fmt.Errorf("setting write deadline: %w", err)
		}
	}
	if err := p.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// ReadFrame blocks for the next inbound frame. A close handshake or a
// locally closed socket is reported as io.EOF.
func (p *wsPeer) ReadFrame() (relay.Frame, error) {
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived) || errors.Is(err, net.ErrClosed) {
			return relay.Frame{}, io.EOF
		}
		return relay.Frame{}, err
	}

	var f relay.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return relay.Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}

// CloseWithReason sends a close frame and closes the socket. Safe to call more than once.
func (p *wsPeer) CloseWithReason(code int, reason string) {
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		_ = p.conn.Close()
	})
}

// handleWebSocket handles GET /ws?room=X&agent=Y. The agent name defaults to
// the human participant.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		g.sendJSONError(w, http.StatusBadRequest, "room is required")
		return
	}
	name := r.URL.Query().Get("agent")
	if name == "" {
		name = relay.DefaultParticipant
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request
		g.logger.Warn("websocket upgrade failed", "room", room, "participant", name, "error", err)
		return
	}

	peer := newWSPeer(conn, g.config.WebSocket.ReadLimit, g.config.WebSocket.WriteTimeout)
	logger := g.logger.With(
		slog.String("conn_id", peer.id),
		slog.String("room", room),
		slog.String("participant", name),
	)

	g.trackPeer(peer)
	g.metrics.ConnectionOpened()
	logger.Info("participant connected", "remote", r.RemoteAddr)

	defer func() {
		g.untrackPeer(peer)
		g.metrics.ConnectionClosed()
		peer.CloseWithReason(websocket.CloseNormalClosure, "")
		logger.Info("participant disconnected")
	}()

	if err := g.relay.Serve(r.Context(), room, name, peer); err != nil {
		logger.Warn("connection ended with error", "error", err)
	}
}
