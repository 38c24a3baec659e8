// ABOUTME: Relay service: validates ingress, stamps and persists messages, then broadcasts them
// ABOUTME: HTTP posts and WebSocket frames share one persist-then-broadcast path

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/agentchat/internal/metrics"
	"github.com/2389/agentchat/internal/store"
)

// ErrValidation is returned (wrapped) when an ingress request is malformed or incomplete.
var ErrValidation = errors.New("invalid message")

// DefaultParticipant is the name used for connections that do not identify themselves.
const DefaultParticipant = "human"

// Frame is an inbound message as it arrives over HTTP or WebSocket.
// Empty fields are filled from the connection or defaults where allowed.
type Frame struct {
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Peer is a connection the relay both reads frames from and broadcasts to.
// ReadFrame returns io.EOF once the peer has closed cleanly.
type Peer interface {
	Conn
	ReadFrame() (Frame, error)
}

// Relay persists every inbound message before fanning it out to the room.
type Relay struct {
	store    store.MessageStore
	registry *Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Relay. metrics may be nil. Pass nil logger for default.
func New(messages store.MessageStore, registry *Registry, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		store:    messages,
		registry: registry,
		metrics:  m,
		logger:   logger.With("component", "relay"),
		now:      time.Now,
	}
}

// Registry returns the connection registry the relay broadcasts through.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// PostMessage handles an HTTP post. room, sender and message are required and
// type defaults to chat. The stamped message is persisted, then broadcast.
func (r *Relay) PostMessage(ctx context.Context, f Frame) (*store.Message, error) {
	var missing []string
	if f.Room == "" {
		missing = append(missing, "room")
	}
	if f.Sender == "" {
		missing = append(missing, "sender")
	}
	if f.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	msgType, err := parseType(f.Type)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		Room:    f.Room,
		Sender:  f.Sender,
		Content: f.Message,
		Type:    msgType,
	}
	if err := r.deliver(ctx, msg, metrics.SourceHTTP); err != nil {
		return nil, err
	}
	return msg, nil
}

// OnInboundFrame handles one WebSocket frame from the connection (room, name).
// A frame without room or sender inherits the connection's values; a missing
// message is stored as empty text.
func (r *Relay) OnInboundFrame(ctx context.Context, room, name string, f Frame) (*store.Message, error) {
	if f.Room == "" {
		f.Room = room
	}
	if f.Sender == "" {
		f.Sender = name
	}

	msgType, err := parseType(f.Type)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		Room:    f.Room,
		Sender:  f.Sender,
		Content: f.Message,
		Type:    msgType,
	}
	if err := r.deliver(ctx, msg, metrics.SourceWebSocket); err != nil {
		return nil, err
	}
	return msg, nil
}

// deliver stamps msg, appends it to the log and broadcasts it to msg.Room.
// Nothing is broadcast if the append fails.
func (r *Relay) deliver(ctx context.Context, msg *store.Message, source string) error {
	msg.Timestamp = store.Stamp(r.now())

	if err := r.store.Append(ctx, msg); err != nil {
		r.metrics.PersistFailed()
		r.logger.Error("failed to persist message",
			"room", msg.Room,
			"sender", msg.Sender,
			"source", source,
			"error", err)
		return err
	}
	r.metrics.Persisted(source)

	delivered, pruned := r.registry.Broadcast(msg.Room, msg)
	r.metrics.Broadcast(delivered, pruned)
	return nil
}

// Serve registers peer as (room, name) and relays its frames until it
// disconnects, at which point the entry is released. A clean close returns nil.
func (r *Relay) Serve(ctx context.Context, room, name string, peer Peer) error {
	r.registry.Register(room, name, peer)
	defer r.registry.Release(room, name, peer)

	for {
		frame, err := peer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Debug("peer closed", "room", room, "participant", name)
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		if _, err := r.OnInboundFrame(ctx, room, name, frame); err != nil {
			// Bad frames and storage failures are not fatal to the connection
			r.logger.Warn("dropped inbound frame",
				"room", room,
				"participant", name,
				"error", err)
		}
	}
}

// ListMessages returns the room's history, oldest first.
func (r *Relay) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return r.store.ListByRoom(ctx, room, limit)
}

// RecentMessages returns the newest limit messages of room, oldest first.
func (r *Relay) RecentMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return r.store.ListRecentByRoom(ctx, room, limit)
}

// ListAgents returns the participants currently connected to room.
func (r *Relay) ListAgents(room string) []string {
	return r.registry.Agents(room)
}

// parseType maps the wire type to a MessageType, defaulting to chat.
func parseType(raw string) (store.MessageType, error) {
	if raw == "" {
		return store.MessageTypeChat, nil
	}
	t := store.MessageType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown message type %q", ErrValidation, raw)
	}
	return t, nil
}
