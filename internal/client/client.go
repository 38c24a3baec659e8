// ABOUTME: Agent-side WebSocket client that joins a room, sends messages and dispatches inbound frames
// ABOUTME: The receive loop never waits on the handler; dispatch is serial (queued) or concurrent

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/2389/agentchat/internal/relay"
	"github.com/2389/agentchat/internal/store"
)

var (
	// ErrTransport is returned (wrapped) when the connection cannot be opened or written.
	ErrTransport = errors.New("transport error")

	// ErrSerialization is returned (wrapped) when an outbound message cannot be encoded.
	ErrSerialization = errors.New("serialization error")
)

// Dispatch modes.
const (
	DispatchSerial     = "serial"
	DispatchConcurrent = "concurrent"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 10 * time.Second
)

// Handler receives each inbound message. It runs off the receive loop.
type Handler func(ctx context.Context, msg *store.Message)

// Config describes the room membership of one client.
type Config struct {
	// ServerURL is the relay base URL, e.g. ws://127.0.0.1:8000
	ServerURL string
	Room      string
	Name      string

	// Dispatch is DispatchSerial (default) or DispatchConcurrent
	Dispatch string
	// QueueSize bounds pending frames in serial mode
	QueueSize    int
	WriteTimeout time.Duration
}

// Client is one participant's connection to the relay.
type Client struct {
	cfg     Config
	handler Handler
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	loopWG    sync.WaitGroup
	handlerWG sync.WaitGroup

	writeMu sync.Mutex
	queue   chan *store.Message
}

// New creates a Client. Pass nil logger for default.
func New(cfg Config, handler Handler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dispatch == "" {
		cfg.Dispatch = DispatchSerial
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	done := make(chan struct{})
	close(done)

	return &Client{
		cfg:     cfg,
		handler: handler,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger.With(
			"component", "client",
			"room", cfg.Room,
			"participant", cfg.Name,
		),
		done: done,
	}
}

// URL returns the WebSocket endpoint for this client's room and name.
func (c *Client) URL() (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.ServerURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}
	switch base.Scheme {
	case "http":
		base.Scheme = "ws"
	case "https":
		base.Scheme = "wss"
	}

	q := url.Values{}
	q.Set("room", c.cfg.Room)
	q.Set("agent", c.cfg.Name)
	base.Path += "/ws"
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Connect dials the relay and starts the receive loop. On failure the client
// stays disconnected; there is no automatic reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("%w: already connected", ErrTransport)
	}

	endpoint, err := c.URL()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %w", ErrTransport, endpoint, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.done = make(chan struct{})

	if c.cfg.Dispatch == DispatchSerial {
		c.queue = make(chan *store.Message, c.cfg.QueueSize)
		queue := c.queue
		c.handlerWG.Add(1)
		go func() {
			defer c.handlerWG.Done()
			c.consume(loopCtx, queue)
		}()
	}

	c.loopWG.Add(1)
	go c.receiveLoop(loopCtx, conn, c.done)

	c.logger.Info("connected to relay", "url", endpoint, "dispatch", c.cfg.Dispatch)
	return nil
}

// Connected reports whether the client holds an open connection. It turns
// false once the relay drops the connection, after which Connect may be
// called again.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Done is closed when the receive loop ends, either from Disconnect or
// because the relay went away.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Send writes msg to the relay. Timestamp is assigned by the relay and ignored here.
func (c *Client) Send(ctx context.Context, msg *store.Message) error {
	if !utf8.ValidString(msg.Room) || !utf8.ValidString(msg.Sender) || !utf8.ValidString(msg.Content) {
		return fmt.Errorf("%w: message is not valid UTF-8", ErrSerialization)
	}
	data, err := json.Marshal(relay.Frame{
		Room:    msg.Room,
		Sender:  msg.Sender,
		Message: msg.Content,
		Type:    string(msg.Type),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrTransport)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: sending message: %w", ErrTransport, err)
	}
	return nil
}

// Disconnect stops the receive loop, waits for running handlers to return
// and then closes the connection. Handlers see their context cancelled but
// may still Send until they return. Calling it while disconnected is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if conn == nil || cancel == nil {
		return nil
	}

	cancel()
	_ = conn.SetReadDeadline(time.Now())
	c.loopWG.Wait()
	c.handlerWG.Wait()

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := conn.Close()

	c.logger.Info("disconnected from relay")
	if err != nil {
		return fmt.Errorf("%w: closing connection: %w", ErrTransport, err)
	}
	return nil
}

// receiveLoop decodes frames until the connection ends. A frame that cannot
// be decoded ends the loop.
func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer c.loopWG.Done()
	defer close(done)
	defer c.detach(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.logger.Debug("receive loop stopped")
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.Info("relay closed the connection", "reason", err)
			default:
				c.logger.Warn("receive loop ended", "error", err)
			}
			return
		}

		var msg store.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error("failed to decode frame", "error", err)
			return
		}
		c.dispatch(ctx, &msg)
	}
}

// detach drops conn when the loop ended on its own, so Connected turns false
// before Done closes. After Disconnect has claimed the connection it does nothing.
func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	var cancel context.CancelFunc
	if c.conn == conn && c.cancel != nil {
		cancel = c.cancel
		c.conn = nil
		c.cancel = nil
	}
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = conn.Close()
}

// dispatch hands msg to the handler without blocking the receive loop.
func (c *Client) dispatch(ctx context.Context, msg *store.Message) {
	if c.handler == nil {
		return
	}

	if c.cfg.Dispatch == DispatchConcurrent {
		c.handlerWG.Add(1)
		go func() {
			defer c.handlerWG.Done()
			c.handler(ctx, msg)
		}()
		return
	}

	select {
	case c.queue <- msg:
	default:
		c.logger.Warn("dispatch queue full, dropping frame",
			"sender", msg.Sender,
			"queue_size", cap(c.queue))
	}
}

// consume runs the handler for queued frames one at a time.
func (c *Client) consume(ctx context.Context, queue <-chan *store.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			if ctx.Err() != nil {
				return
			}
			c.handler(ctx, msg)
		}
	}
}
