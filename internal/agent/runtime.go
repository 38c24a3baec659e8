// ABOUTME: Agent runtime state machine: filters inbound messages, decides when to reply and sends replies
// ABOUTME: Idle -> Listening -> Evaluating -> (Delaying) -> Generating -> Sending -> Listening; Stopped is terminal

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/agentchat/internal/dedupe"
	"github.com/2389/agentchat/internal/store"
)

// State is a runtime lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateEvaluating
	StateDelaying
	StateGenerating
	StateSending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateEvaluating:
		return "evaluating"
	case StateDelaying:
		return "delaying"
	case StateGenerating:
		return "generating"
	case StateSending:
		return "sending"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Transport delivers the agent's messages to the relay.
type Transport interface {
	Send(ctx context.Context, msg *store.Message) error
}

// Runtime drives one agent in one room.
type Runtime struct {
	session   Session
	history   History
	generator *ResponseGenerator
	transport Transport
	guard     *dedupe.Guard
	logger    *slog.Logger

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRuntime creates a Runtime. Pass nil logger for default.
func NewRuntime(s Session, gen *ResponseGenerator, transport Transport, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		session:   s,
		generator: gen,
		transport: transport,
		guard:     dedupe.New(dedupe.DefaultTTL, dedupe.DefaultMaxSize),
		logger: logger.With(
			"component", "agent",
			"agent", s.Name,
			"room", s.Room,
		),
		stopCh: make(chan struct{}),
	}
}

// State returns the current state.
func (r *Runtime) State() State {
	return State(r.state.Load())
}

// setState moves to s unless the runtime has stopped.
func (r *Runtime) setState(s State) {
	for {
		cur := r.state.Load()
		if State(cur) == StateStopped {
			return
		}
		if r.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// History returns a copy of the full conversation history.
func (r *Runtime) History() []Entry {
	return r.history.Window(0)
}

// JoinGreeting is the system message an agent sends when it joins.
func JoinGreeting(name string) string {
	return fmt.Sprintf("Hello, I am %s and I have joined the chat!", name)
}

// Greet announces the agent to the room.
func (r *Runtime) Greet(ctx context.Context) error {
	return r.transport.Send(ctx, &store.Message{
		Room:    r.session.Room,
		Sender:  r.session.Name,
		Content: JoinGreeting(r.session.Name),
		Type:    store.MessageTypeSystem,
	})
}

// Seed loads earlier room messages into history without replying to them.
// Messages from other rooms and already seen frames are skipped; the agent's
// own earlier messages are kept so prompts attribute them correctly.
func (r *Runtime) Seed(msgs []*store.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Room != r.session.Room || r.guard.Seen(m) {
			continue
		}
		r.history.Append(Entry{Sender: m.Sender, Content: m.Content, Type: m.Type})
		n++
	}
	r.logger.Info("seeded history", "messages", n)
	return n
}

// StartListening marks the runtime as listening and blocks until Stop is
// called or ctx is cancelled. Either way the runtime ends Stopped.
func (r *Runtime) StartListening(ctx context.Context) {
	r.setState(StateListening)
	r.logger.Info("listening for messages")

	select {
	case <-r.stopCh:
	case <-ctx.Done():
		r.Stop()
	}
	r.logger.Info("stopped listening")
}

// Stop moves the runtime to Stopped and releases StartListening. A reply
// already being generated still completes. Safe to call more than once.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		r.state.Store(int32(StateStopped))
		close(r.stopCh)
		r.guard.Close()
	})
}

// OnMessage handles one relayed message. It is the client's frame handler.
func (r *Runtime) OnMessage(ctx context.Context, msg *store.Message) {
	if r.State() == StateStopped {
		return
	}
	if msg.Sender == r.session.Name || msg.Room != r.session.Room {
		return
	}
	if r.guard.Seen(msg) {
		r.logger.Debug("ignoring duplicate frame", "sender", msg.Sender, "timestamp", msg.Timestamp)
		return
	}

	r.logger.Debug("received message", "sender", msg.Sender, "type", msg.Type)
	r.history.Append(Entry{Sender: msg.Sender, Content: msg.Content, Type: msg.Type})

	r.setState(StateEvaluating)
	if !r.shouldRespond(msg) {
		r.setState(StateListening)
		return
	}

	if d := r.session.ResponseDelay; d > 0 {
		r.setState(StateDelaying)
		if !r.wait(d) {
			return
		}
	}

	// Generation and sending outlive the frame's context
	genCtx := context.WithoutCancel(ctx)

	r.setState(StateGenerating)
	reply, err := r.generator.Generate(genCtx, r.session, r.history.Window(r.session.HistoryLimit))
	if err != nil {
		r.logger.Warn("sending fallback reply", "error", err)
	}

	r.setState(StateSending)
	if err := r.transport.Send(genCtx, &store.Message{
		Room:    r.session.Room,
		Sender:  r.session.Name,
		Content: reply,
		Type:    store.MessageTypeChat,
	}); err != nil {
		r.logger.Error("failed to send reply", "error", err)
	}
	r.history.Append(Entry{Sender: r.session.Name, Content: reply, Type: store.MessageTypeChat})

	r.setState(StateListening)
}

// shouldRespond reports whether msg triggers a reply. Chat messages and
// mentions do; system messages never do.
func (r *Runtime) shouldRespond(msg *store.Message) bool {
	if msg.Type == store.MessageTypeSystem {
		return false
	}
	return msg.Type == store.MessageTypeChat || strings.Contains(msg.Content, "@"+r.session.Name)
}

// wait sleeps for d and reports false if the runtime stopped meanwhile.
func (r *Runtime) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-r.stopCh:
		return false
	}
}
