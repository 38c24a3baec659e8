// ABOUTME: Store interface and data types for agentchat persistence
// ABOUTME: Defines the chat Message, its wire shape, and the append-only MessageStore contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrPersistence is returned (wrapped) when the storage layer fails an operation.
var ErrPersistence = errors.New("persistence failure")

// DefaultListLimit caps ListByRoom when the caller passes no limit.
const DefaultListLimit = 100

// TimestampLayout is the ISO-8601 layout used for message timestamps.
// Fixed-width microseconds keep lexicographic order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// MessageType distinguishes conversational messages from presence notices.
type MessageType string

// Message types
const (
	MessageTypeChat   MessageType = "chat"   // Conversational content, may trigger agents
	MessageTypeSystem MessageType = "system" // Join notices and other out-of-band text
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeChat || t == MessageTypeSystem
}

// Message is a single chat message in a room. Messages are immutable once persisted.
type Message struct {
	ID        int64       `json:"-"`
	Room      string      `json:"room"`
	Sender    string      `json:"sender"`
	Content   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
	Type      MessageType `json:"type"`
}

// Stamp formats t (converted to UTC) as a message timestamp.
func Stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MessageStore is the append-only durable log of chat messages.
type MessageStore interface {
	// Append persists msg and sets msg.ID to the row id.
	Append(ctx context.Context, msg *Message) error

	// ListByRoom returns up to limit messages for room, oldest first,
	// ordered by (timestamp, id). A limit <= 0 means DefaultListLimit.
	ListByRoom(ctx context.Context, room string, limit int) ([]*Message, error)

	// ListRecentByRoom returns the newest limit messages for room, still
	// oldest first. A limit <= 0 means DefaultListLimit.
	ListRecentByRoom(ctx context.Context, room string, limit int) ([]*Message, error)

	// Close releases the underlying resources.
	Close() error
}
