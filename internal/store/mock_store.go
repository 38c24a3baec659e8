// ABOUTME: Mock MessageStore implementation for testing
// ABOUTME: Keeps messages in memory and can be told to fail appends or reads

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockStore is an in-memory MessageStore for testing.
type MockStore struct {
	mu       sync.RWMutex
	messages map[string][]*Message // keyed by room
	nextID   int64

	// AppendErr, when set, is returned (wrapped in ErrPersistence) by Append.
	AppendErr error
	// ListErr, when set, is returned (wrapped in ErrPersistence) by ListByRoom.
	ListErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		messages: make(map[string][]*Message),
	}
}

// Append stores a copy of msg.
func (m *MockStore) Append(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, m.AppendErr)
	}

	m.nextID++
	msg.ID = m.nextID

	cp := *msg
	m.messages[msg.Room] = append(m.messages[msg.Room], &cp)
	return nil
}

// ListByRoom returns copies of the room's messages ordered by (timestamp, id).
func (m *MockStore) ListByRoom(ctx context.Context, room string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, m.ListErr)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	stored := m.messages[room]
	result := make([]*Message, 0, len(stored))
	for _, msg := range stored {
		cp := *msg
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecentByRoom returns copies of the room's newest limit messages, oldest first.
func (m *MockStore) ListRecentByRoom(ctx context.Context, room string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	all, err := m.ListByRoom(ctx, room, m.Count(room))
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// Count returns the number of messages stored for room.
func (m *MockStore) Count(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[room])
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time interface check
var _ MessageStore = (*MockStore)(nil)
