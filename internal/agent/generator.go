// ABOUTME: Builds prompts from conversation history and calls the generation capability
// ABOUTME: Retries with exponential backoff (2s, then 4s) and falls back to a fixed error reply

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/2389/agentchat/internal/store"
)

// ErrGeneration is returned (wrapped) when every generation attempt failed.
var ErrGeneration = errors.New("generation failed")

// MaxAttempts is the number of generation attempts per reply.
const MaxAttempts = 3

// FallbackResponse is sent in place of a reply when every attempt failed.
var FallbackResponse = fmt.Sprintf("Error: LLM failed to generate a response after %d attempts.", MaxAttempts)

// Capability produces text for a prompt. Implementations live in internal/llm.
type Capability interface {
	Generate(ctx context.Context, prompt, system string, options map[string]any) (string, error)
}

// ResponseGenerator turns a session's history into one reply.
type ResponseGenerator struct {
	capability Capability
	logger     *slog.Logger

	// timer waits between attempts; nil uses a real timer
	timer backoff.Timer
}

// NewResponseGenerator creates a generator around c. Pass nil logger for default.
func NewResponseGenerator(c Capability, logger *slog.Logger) *ResponseGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseGenerator{
		capability: c,
		logger:     logger.With("component", "generator"),
	}
}

// retryPolicy waits 2s after the first failure and 4s after the second,
// allowing MaxAttempts calls in total.
func retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, MaxAttempts-1), ctx)
}

// Generate produces a reply for s from history. When every attempt fails it
// returns FallbackResponse together with an error wrapping ErrGeneration, so
// the caller can still send a reply.
func (g *ResponseGenerator) Generate(ctx context.Context, s Session, history []Entry) (string, error) {
	prompt := BuildPrompt(s.Name, history)
	system := s.SystemPrompt()

	attempt := 0
	var text string
	op := func() error {
		attempt++
		out, err := g.capability.Generate(ctx, prompt, system, s.Options)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		g.logger.Warn("generation attempt failed, retrying",
			"agent", s.Name,
			"model", s.Model,
			"attempt", attempt,
			"max_attempts", MaxAttempts,
			"retry_in", wait,
			"error", err)
	}

	if err := backoff.RetryNotifyWithTimer(op, retryPolicy(ctx), notify, g.timer); err != nil {
		g.logger.Error("generation failed",
			"agent", s.Name,
			"model", s.Model,
			"attempts", attempt,
			"error", err)
		return FallbackResponse, fmt.Errorf("%w after %d attempts: %w", ErrGeneration, attempt, err)
	}
	return text, nil
}

// BuildPrompt flattens history into "role: content" paragraphs. The agent's
// own lines are "assistant", everyone else is "user", and system messages are
// left out.
func BuildPrompt(name string, history []Entry) string {
	var b strings.Builder
	for _, e := range history {
		if e.Type == store.MessageTypeSystem {
			continue
		}
		role := "user"
		if e.Sender == name {
			role = "assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, e.Content)
	}
	return strings.TrimSpace(b.String())
}
