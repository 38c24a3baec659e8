// ABOUTME: HTTP API handlers for posting messages and reading room history, presence and transcripts
// ABOUTME: Errors are answered as {"error": "..."} JSON with a matching status code

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2389/agentchat/internal/relay"
	"github.com/2389/agentchat/internal/store"
	"github.com/2389/agentchat/internal/transcript"
)

// maxBodyBytes caps POST /api/message bodies.
const maxBodyBytes = 1 << 20

// PostMessageRequest is the JSON request body for POST /api/message.
type PostMessageRequest struct {
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// handlePostMessage handles POST /api/message.
func (g *Gateway) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	_, err := g.relay.PostMessage(r.Context(), relay.Frame{
		Room:    req.Room,
		Sender:  req.Sender,
		Message: req.Message,
		Type:    req.Type,
	})
	switch {
	case errors.Is(err, relay.ErrValidation):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		g.sendJSONError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	g.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// handleListMessages handles GET /api/messages?room=X[&limit=N][&order=recent].
// The default order returns the oldest limit messages; order=recent returns the
// newest. Either way the result is oldest first and never exceeds the configured
// history cap.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		g.sendJSONError(w, http.StatusBadRequest, "room is required")
		return
	}

	limit, err := g.historyLimit(r.URL.Query().Get("limit"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	list := g.relay.ListMessages
	switch r.URL.Query().Get("order") {
	case "", "oldest":
	case "recent":
		list = g.relay.RecentMessages
	default:
		g.sendJSONError(w, http.StatusBadRequest, "order must be oldest or recent")
		return
	}

	msgs, err := list(r.Context(), room, limit)
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	g.sendJSON(w, http.StatusOK, msgs)
}

// handleListAgents handles GET /api/agents?room=X.
// Unknown rooms yield an empty array.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		g.sendJSONError(w, http.StatusBadRequest, "room is required")
		return
	}

	g.sendJSON(w, http.StatusOK, g.relay.ListAgents(room))
}

// handleTranscript handles GET /api/transcript?room=X&format=markdown|html.
func (g *Gateway) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		g.sendJSONError(w, http.StatusBadRequest, "room is required")
		return
	}

	msgs, err := g.relay.ListMessages(r.Context(), room, g.config.History.Limit)
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	body, contentType, err := transcript.Render(r.URL.Query().Get("format"), room, msgs)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// historyLimit parses an optional limit query value against the configured cap.
func (g *Gateway) historyLimit(raw string) (int, error) {
	max := g.config.History.Limit
	if max <= 0 {
		max = store.DefaultListLimit
	}
	if raw == "" {
		return max, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, max), nil
}

// sendJSON writes v as a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
