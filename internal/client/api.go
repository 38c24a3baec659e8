// ABOUTME: HTTP client for the relay's REST endpoints
// ABOUTME: Used for history replay and the CLI's history, agents, send and health commands

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/agentchat/internal/store"
)

// StatusError is a non-2xx answer from the relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

// APIClient talks to the relay over HTTP.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPIClient creates an APIClient. ws:// and wss:// URLs are accepted and
// mapped to http:// and https://.
func NewAPIClient(serverURL string) *APIClient {
	base := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(base, "ws://"):
		base = "http://" + strings.TrimPrefix(base, "ws://")
	case strings.HasPrefix(base, "wss://"):
		base = "https://" + strings.TrimPrefix(base, "wss://")
	}

	return &APIClient{
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request and returns the body of a 2xx response.
func (c *APIClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

// Messages returns the oldest limit messages from room, oldest first.
// A limit of zero uses the relay's default.
func (c *APIClient) Messages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return c.listMessages(ctx, room, limit, "")
}

// RecentMessages returns the newest limit messages from room, oldest first.
// A limit of zero uses the relay's default.
func (c *APIClient) RecentMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return c.listMessages(ctx, room, limit, "recent")
}

func (c *APIClient) listMessages(ctx context.Context, room string, limit int, order string) ([]*store.Message, error) {
	q := url.Values{}
	q.Set("room", room)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if order != "" {
		q.Set("order", order)
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var msgs []*store.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("%w: decoding messages: %w", ErrSerialization, err)
	}
	return msgs, nil
}

// Agents returns the names connected to room.
func (c *APIClient) Agents(ctx context.Context, room string) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/agents?room="+url.QueryEscape(room), nil)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("%w: decoding agents: %w", ErrSerialization, err)
	}
	return names, nil
}

// Post sends a message through POST /api/message. An empty msgType means chat.
func (c *APIClient) Post(ctx context.Context, room, sender, message string, msgType store.MessageType) error {
	payload := map[string]string{
		"room":    room,
		"sender":  sender,
		"message": message,
	}
	if msgType != "" {
		payload["type"] = string(msgType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	_, err = c.doRequest(ctx, http.MethodPost, "/api/message", body)
	return err
}

// Transcript returns the rendered transcript of room in format (markdown or html).
func (c *APIClient) Transcript(ctx context.Context, room, format string) ([]byte, error) {
	q := url.Values{}
	q.Set("room", room)
	if format != "" {
		q.Set("format", format)
	}
	return c.doRequest(ctx, http.MethodGet, "/api/transcript?"+q.Encode(), nil)
}

// Health checks that the relay is up.
func (c *APIClient) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}
