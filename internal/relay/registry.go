// ABOUTME: In-memory table of live connections per room, keyed by participant name
// ABOUTME: Fans messages out to a room and prunes any connection whose send fails

package relay

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/agentchat/internal/store"
)

// Conn is a live transport endpoint that can receive broadcast messages.
// Implementations must be safe for concurrent Send calls.
type Conn interface {
	Send(msg *store.Message) error
}

// Registry tracks connected participants per room.
// A room exists only while it has at least one participant.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn // room -> participant name -> conn
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		logger: logger.With("component", "registry"),
	}
}

// Register adds conn under (room, name). An existing entry for the same name is
// replaced without being closed; replaced reports whether that happened.
func (r *Registry) Register(room, name string, conn Conn) (replaced bool) {
	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	_, replaced = members[name]
	members[name] = conn
	total := len(members)
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("participant re-registered, previous connection left open",
			"room", room,
			"participant", name)
	}
	r.logger.Info("participant registered",
		"room", room,
		"participant", name,
		"room_participants", total)

	return replaced
}

// Unregister removes (room, name) whatever connection it holds.
func (r *Registry) Unregister(room, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(room, name, nil)
}

// Release removes (room, name) only if it still maps to conn. It returns false
// when the entry is gone or now belongs to a newer connection.
func (r *Registry) Release(room, name string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(room, name, conn)
}

// removeLocked deletes the entry, dropping the room once empty. A nil conn
// matches any entry. Must be called with mu held.
func (r *Registry) removeLocked(room, name string, conn Conn) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	current, ok := members[name]
	if !ok {
		return false
	}
	if conn != nil && current != conn {
		return false
	}

	delete(members, name)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	r.logger.Info("participant unregistered",
		"room", room,
		"participant", name,
		"room_participants", len(members))
	return true
}

// Agents returns the names registered in room, sorted. Unknown rooms yield an
// empty, non-nil slice.
func (r *Registry) Agents(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rooms[room]))
	for name := range r.rooms[room] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rooms returns the number of rooms with at least one participant.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Broadcast delivers msg to every participant of room. Failed sends are logged
// and the failing connection is removed before Broadcast returns.
func (r *Registry) Broadcast(room string, msg *store.Message) (delivered, pruned int) {
	type target struct {
		name string
		conn Conn
	}

	// Snapshot under read lock so sends happen without holding it
	r.mu.RLock()
	members := r.rooms[room]
	targets := make([]target, 0, len(members))
	for name, conn := range members {
		targets = append(targets, target{name: name, conn: conn})
	}
	r.mu.RUnlock()

	var failed []target
	for _, t := range targets {
		if err := t.conn.Send(msg); err != nil {
			r.logger.Warn("broadcast send failed, dropping connection",
				"room", room,
				"participant", t.name,
				"error", err)
			failed = append(failed, t)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		r.mu.Lock()
		for _, t := range failed {
			if r.removeLocked(room, t.name, t.conn) {
				pruned++
			}
		}
		r.mu.Unlock()
	}

	r.logger.Debug("broadcast complete",
		"room", room,
		"delivered", delivered,
		"pruned", pruned)
	return delivered, pruned
}
