// Package store provides the durable chat log for the relay using SQLite.
//
// # Data Model
//
// The log is a single append-only table:
//
//	messages(id, room_name, sender, message_content, timestamp, message_type)
//
// indexed on (room_name, timestamp) so that room history replay stays cheap.
// Rows are never updated or deleted.
//
// # Ordering
//
// Timestamps are UTC ISO-8601 strings with fixed-width microseconds
// (see TimestampLayout), so text order is chronological order. Wall clocks
// collide, so ListByRoom orders by (timestamp, id) and the row id breaks ties.
//
// # SQLite Configuration
//
// File databases run in WAL mode with a busy timeout. ":memory:" databases are
// pinned to one pooled connection, since each connection would otherwise open
// its own empty database.
//
// # Error Handling
//
// Every storage failure is wrapped with ErrPersistence:
//
//	if errors.Is(err, store.ErrPersistence) { ... }
//
// # Testing
//
// MockStore keeps messages in memory and can inject append or read failures.
package store
