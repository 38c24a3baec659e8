// ABOUTME: Gateway orchestrator that owns the store, relay and HTTP server
// ABOUTME: Wires routes, tracks live WebSocket peers and manages startup/shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/agentchat/internal/assets"
	"github.com/2389/agentchat/internal/config"
	"github.com/2389/agentchat/internal/metrics"
	"github.com/2389/agentchat/internal/relay"
	"github.com/2389/agentchat/internal/store"
)

// Gateway serves the chat relay over HTTP and WebSocket.
type Gateway struct {
	config     *config.Config
	store      store.MessageStore
	relay      *relay.Relay
	metrics    *metrics.Metrics
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	peersMu sync.Mutex
	peers   map[*wsPeer]struct{}
}

// New creates a Gateway backed by a SQLite store at cfg.Database.Path.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return NewWithStore(cfg, s, logger), nil
}

// NewWithStore creates a Gateway around an existing message store.
// The gateway takes ownership of s and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s store.MessageStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	registry := relay.NewRegistry(logger)
	g := &Gateway{
		config:  cfg,
		store:   s,
		relay:   relay.New(s, registry, m, logger),
		metrics: m,
		logger:  logger.With("component", "gateway"),
		peers:   make(map[*wsPeer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Participants are unauthenticated; any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	g.httpServer = &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Relay returns the relay service.
func (g *Gateway) Relay() *relay.Relay {
	return g.relay
}

// Handler builds the HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/message", g.instrument("/api/message", g.handlePostMessage))
	mux.Handle("/api/messages", g.instrument("/api/messages", g.handleListMessages))
	mux.Handle("/api/agents", g.instrument("/api/agents", g.handleListAgents))
	mux.Handle("/api/transcript", g.instrument("/api/transcript", g.handleTranscript))
	mux.Handle("/ws", g.instrument("/ws", g.handleWebSocket))
	mux.HandleFunc("/health", g.handleHealth)

	if g.metrics != nil {
		mux.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	mux.Handle("/static/", http.StripPrefix("/static/", assets.FileServer()))
	mux.HandleFunc("/", g.handleIndex)

	return mux
}

// Run listens on the configured address and serves until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.Addr(), err)
	}
	return g.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the server fails,
// then shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error, initiating shutdown", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops accepting requests, closes every live WebSocket and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	// Hijacked connections are invisible to http.Server.Shutdown
	g.closePeers()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	return errors.Join(errs...)
}

func (g *Gateway) trackPeer(p *wsPeer) {
	g.peersMu.Lock()
	defer g.peersMu.Unlock()
	g.peers[p] = struct{}{}
}

func (g *Gateway) untrackPeer(p *wsPeer) {
	g.peersMu.Lock()
	defer g.peersMu.Unlock()
	delete(g.peers, p)
}

func (g *Gateway) closePeers() {
	g.peersMu.Lock()
	peers := make([]*wsPeer, 0, len(g.peers))
	for p := range g.peers {
		peers = append(peers, p)
	}
	g.peersMu.Unlock()

	for _, p := range peers {
		p.CloseWithReason(websocket.CloseGoingAway, "server shutting down")
	}
}

// handleHealth returns 200 if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// handleIndex serves the chat UI. Without a room in the URL it redirects to the
// server's default room when one is configured.
func (g *Gateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.URL.Query().Get("room") == "" && g.config.Server.Room != "" {
		http.Redirect(w, r, "/?room="+url.QueryEscape(g.config.Server.Room), http.StatusFound)
		return
	}

	page, err := assets.Index()
	if err != nil {
		g.logger.Error("failed to read UI index", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "UI unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}
