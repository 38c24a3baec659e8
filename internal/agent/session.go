// ABOUTME: Agent session settings and the append-only conversation history
// ABOUTME: Sessions are built from an agents file entry plus the file's shared settings

package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389/agentchat/internal/config"
	"github.com/2389/agentchat/internal/store"
)

// Session is one agent's identity and generation settings.
type Session struct {
	Name  string
	Model string
	// Provider is empty unless the agents file names one
	Provider string
	// Persona is a string or a list of lines
	Persona any
	Options map[string]any
	Room    string

	// HistoryLimit is the prompt window in entries; 0 means all
	HistoryLimit  int
	ResponseDelay time.Duration
}

// NewSession builds a Session for agent a joining room.
func NewSession(a *config.AgentConfig, common config.CommonSettings, room string) Session {
	return Session{
		Name:          a.Name,
		Model:         a.Model,
		Provider:      a.Provider,
		Persona:       a.Persona,
		Options:       a.Options,
		Room:          room,
		HistoryLimit:  common.HistoryLimit(),
		ResponseDelay: time.Duration(common.ResponseDelayMS) * time.Millisecond,
	}
}

// SystemPrompt returns the flattened persona.
func (s Session) SystemPrompt() string {
	return FlattenPersona(s.Persona)
}

// FlattenPersona turns a persona into system prompt text. A list is joined
// with newlines after each element is formatted as text; anything else is
// formatted as-is.
func FlattenPersona(persona any) string {
	switch p := persona.(type) {
	case nil:
		return ""
	case string:
		return p
	case []string:
		return strings.Join(p, "\n")
	case []any:
		lines := make([]string, len(p))
		for i, v := range p {
			lines[i] = fmt.Sprint(v)
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(p)
	}
}

// Entry is one line of conversation history.
type Entry struct {
	Sender  string
	Content string
	Type    store.MessageType
}

// History is an append-only conversation log, safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []Entry
}

// Append adds e to the end of the history.
func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

// Window returns a copy of the last limit entries. A limit of 0 or less returns all.
func (h *History) Window(limit int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := 0
	if limit > 0 && len(h.entries) > limit {
		start = len(h.entries) - limit
	}
	return append([]Entry(nil), h.entries[start:]...)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
