// ABOUTME: Thread-safe TTL guard that recognizes chat frames an agent has already handled
// ABOUTME: Frames are keyed by a fingerprint of room, sender, timestamp and content

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/2389/agentchat/internal/store"
)

// Defaults used by agent runtimes.
const (
	DefaultTTL     = 10 * time.Minute
	DefaultMaxSize = 4096
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Guard remembers fingerprints for a TTL, bounded in size. The oldest
// fingerprint is evicted first when the guard is full.
type Guard struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// New creates a Guard and starts its background sweeper. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	g := &Guard{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go g.sweeper(min(ttl, time.Minute))
	return g
}

// Fingerprint identifies a relayed message. Two deliveries of the same stored
// message share a fingerprint.
func Fingerprint(msg *store.Message) string {
	h := sha256.New()
	for _, part := range []string{msg.Room, msg.Sender, msg.Timestamp, msg.Content} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Seen reports whether msg was already recorded within the TTL, and records
// it if not. The check and the record happen under one lock.
func (g *Guard) Seen(msg *store.Message) bool {
	key := Fingerprint(msg)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.seen[key]; ok {
		if now.Sub(e.seenAt) < g.ttl {
			return true
		}
		e.seenAt = now
		g.order.MoveToBack(e.element)
		return false
	}

	if len(g.seen) >= g.maxSize {
		g.evictOldestLocked()
	}
	g.seen[key] = &entry{seenAt: now, element: g.order.PushBack(key)}
	return false
}

// Len returns the number of fingerprints currently held.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Guard) evictOldestLocked() {
	front := g.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	g.order.Remove(front)
	delete(g.seen, key)
}

func (g *Guard) sweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.done:
			return
		}
	}
}

// sweep drops expired fingerprints.
func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, e := range g.seen {
		if now.Sub(e.seenAt) >= g.ttl {
			g.order.Remove(e.element)
			delete(g.seen, key)
		}
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
