// ABOUTME: SQLite implementation of the MessageStore using modernc.org/sqlite
// ABOUTME: Append-only messages table with a (room_name, timestamp) index, created on open

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// SQLiteStore implements MessageStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is created if it doesn't exist and parent directories are created if needed.
// Pass ":memory:" for a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every pooled connection to :memory: would otherwise see its own empty database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// InitSchema creates the messages table and its index if they are absent.
// It is safe to call repeatedly.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_name TEXT NOT NULL,
			sender TEXT NOT NULL,
			message_content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			message_type TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_room_name_timestamp ON messages(room_name, timestamp);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: creating schema: %w", ErrPersistence, err)
	}
	return nil
}

// Append inserts msg into the log and records the assigned row id on msg.
func (s *SQLiteStore) Append(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (room_name, sender, message_content, timestamp, message_type)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query, msg.Room, msg.Sender, msg.Content, msg.Timestamp, string(msg.Type))
	if err != nil {
		return fmt.Errorf("%w: inserting message: %w", ErrPersistence, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: reading message id: %w", ErrPersistence, err)
	}
	msg.ID = id

	s.logger.Debug("message appended", "room", msg.Room, "sender", msg.Sender, "id", id)
	return nil
}

// ListByRoom returns the oldest limit messages of room in (timestamp, id) order.
func (s *SQLiteStore) ListByRoom(ctx context.Context, room string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, room_name, sender, message_content, timestamp, message_type
		FROM messages
		WHERE room_name = ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying messages: %w", ErrPersistence, err)
	}
	return scanMessages(rows)
}

// ListRecentByRoom returns the newest limit messages of room in (timestamp, id) order.
func (s *SQLiteStore) ListRecentByRoom(ctx context.Context, room string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, room_name, sender, message_content, timestamp, message_type
		FROM messages
		WHERE room_name = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying recent messages: %w", ErrPersistence, err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		var msg Message
		var msgType string
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Sender, &msg.Content, &msg.Timestamp, &msgType); err != nil {
			return nil, fmt.Errorf("%w: scanning message: %w", ErrPersistence, err)
		}
		msg.Type = MessageType(msgType)
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating messages: %w", ErrPersistence, err)
	}

	return messages, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time interface check
var _ MessageStore = (*SQLiteStore)(nil)
