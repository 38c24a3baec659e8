// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers schema creation, message persistence, and message ordering/limiting

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	msg := &Message{Room: "r", Sender: "human", Content: "hi", Type: MessageTypeChat, Timestamp: Stamp(time.Now())}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.ListByRoom(ctx, "r", 0)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := store.InitSchema(context.Background()); err != nil {
			t.Fatalf("InitSchema call %d failed: %v", i, err)
		}
	}

	var name string
	err := store.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_room_name_timestamp'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("index lookup failed: %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msg := &Message{
		Room:      "lobby",
		Sender:    "human",
		Content:   "hello there",
		Type:      MessageTypeChat,
		Timestamp: "2024-05-01T10:00:00.000000+00:00",
	}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if msg.ID == 0 {
		t.Error("Append did not set message ID")
	}

	got, err := store.ListByRoom(ctx, "lobby", 100)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}

	m := got[0]
	if m.Room != "lobby" || m.Sender != "human" || m.Content != "hello there" {
		t.Errorf("unexpected message: %+v", m)
	}
	if m.Type != MessageTypeChat {
		t.Errorf("Type = %q, want %q", m.Type, MessageTypeChat)
	}
	if m.Timestamp != msg.Timestamp {
		t.Errorf("Timestamp = %q, want %q", m.Timestamp, msg.Timestamp)
	}
}

func TestListByRoom_OrderingAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Insert out of order so the query, not insertion, determines the result.
	order := []int{4, 1, 3, 0, 2}
	for _, i := range order {
		msg := &Message{
			Room:      "r",
			Sender:    "human",
			Content:   fmt.Sprintf("msg-%d", i),
			Type:      MessageTypeChat,
			Timestamp: Stamp(base.Add(time.Duration(i) * time.Second)),
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.ListByRoom(ctx, "r", 3)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, m := range got {
		want := fmt.Sprintf("msg-%d", i)
		if m.Content != want {
			t.Errorf("got[%d] = %q, want %q", i, m.Content, want)
		}
	}
}

func TestListByRoom_TimestampTieBreaksOnInsertion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := "2024-05-01T10:00:00.000000+00:00"
	for _, content := range []string{"first", "second", "third"} {
		msg := &Message{Room: "r", Sender: "a", Content: content, Type: MessageTypeChat, Timestamp: ts}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.ListByRoom(ctx, "r", 10)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestListByRoom_DefaultLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultListLimit+5; i++ {
		msg := &Message{
			Room:      "busy",
			Sender:    "bot",
			Content:   fmt.Sprintf("n%d", i),
			Type:      MessageTypeChat,
			Timestamp: Stamp(base.Add(time.Duration(i) * time.Millisecond)),
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.ListByRoom(ctx, "busy", 0)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if len(got) != DefaultListLimit {
		t.Errorf("got %d messages, want %d", len(got), DefaultListLimit)
	}
	if got[0].Content != "n0" {
		t.Errorf("first message = %q, want n0", got[0].Content)
	}
}

func TestListRecentByRoom_NewestWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	total := DefaultListLimit + 5
	for i := 0; i < total; i++ {
		msg := &Message{
			Room:      "busy",
			Sender:    "bot",
			Content:   fmt.Sprintf("m%03d", i),
			Type:      MessageTypeChat,
			Timestamp: Stamp(base.Add(time.Duration(i) * time.Millisecond)),
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	// Same timestamp as the newest row: the later insert sorts last.
	tie := &Message{Room: "busy", Sender: "bot", Content: "tie", Type: MessageTypeChat,
		Timestamp: Stamp(base.Add(time.Duration(total-1) * time.Millisecond))}
	if err := store.Append(ctx, tie); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.ListRecentByRoom(ctx, "busy", 0)
	if err != nil {
		t.Fatalf("ListRecentByRoom failed: %v", err)
	}
	if len(got) != DefaultListLimit {
		t.Fatalf("got %d messages, want %d", len(got), DefaultListLimit)
	}
	if got[0].Content != "m006" {
		t.Errorf("first message = %q, want m006", got[0].Content)
	}
	if got[len(got)-2].Content != "m104" || got[len(got)-1].Content != "tie" {
		t.Errorf("last messages = %q, %q, want m104, tie", got[len(got)-2].Content, got[len(got)-1].Content)
	}

	got, err = store.ListRecentByRoom(ctx, "busy", 3)
	if err != nil {
		t.Fatalf("ListRecentByRoom failed: %v", err)
	}
	want := []string{"m103", "m104", "tie"}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, m.Content, want[i])
		}
	}

	empty, err := store.ListRecentByRoom(ctx, "quiet", 10)
	if err != nil {
		t.Fatalf("ListRecentByRoom failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown room = %v, want empty non-nil slice", empty)
	}
}

func TestListByRoom_RoomIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := Stamp(time.Now())
	for _, room := range []string{"a", "b", "a"} {
		msg := &Message{Room: room, Sender: "x", Content: "hi", Type: MessageTypeSystem, Timestamp: ts}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.ListByRoom(ctx, "a", 10)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("room a has %d messages, want 2", len(got))
	}

	empty, err := store.ListByRoom(ctx, "nobody-here", 10)
	if err != nil {
		t.Fatalf("ListByRoom failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown room = %v, want empty non-nil slice", empty)
	}
}

func TestAppend_ClosedDatabaseIsPersistenceError(t *testing.T) {
	store := newTestStore(t)
	store.Close()

	err := store.Append(context.Background(), &Message{Room: "r", Sender: "a", Content: "x", Type: MessageTypeChat, Timestamp: Stamp(time.Now())})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Append error = %v, want ErrPersistence", err)
	}
}

func TestStamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.FixedZone("JST", 9*3600))
	got := Stamp(ts)
	want := "2024-01-01T18:04:05.000006+00:00"
	if got != want {
		t.Errorf("Stamp = %q, want %q", got, want)
	}
}
