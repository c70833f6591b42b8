// Package events implements the synchronization layer: an in-process
// pub/sub bus carrying agent lifecycle events to collaborating surfaces,
// plus the shared understanding projection derived from them. Delivery
// is best-effort and at-most-once; a slow subscriber loses events rather
// than stalling the loop.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Wildcard subscribes to every session's events.
const Wildcard = "*"

// CancelFunc detaches a subscriber and closes its channel.
type CancelFunc func()

type subscriber struct {
	ch      chan domain.Event
	session string
}

// Bus is the in-process event bus. It implements ports.EventPublisher.
// Safe for concurrent use.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	buffer  int
	dropped atomic.Int64
	logger  *slog.Logger
}

// BusOption configures the Bus.
type BusOption func(*Bus)

// WithBuffer overrides the per-subscriber channel capacity.
func WithBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithBusLogger sets a structured logger for drop reporting.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[*subscriber]struct{}),
		buffer: DefaultBuffer,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for one session's events, or for all
// sessions with Wildcard. The returned channel is closed by the cancel
// function; cancel is idempotent.
func (b *Bus) Subscribe(sessionID string) (<-chan domain.Event, CancelFunc) {
	sub := &subscriber{
		ch:      make(chan domain.Event, b.buffer),
		session: sessionID,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish fans the event out to matching subscribers without blocking.
// A full subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(ctx context.Context, evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if sub.session != Wildcard && sub.session != evt.SessionID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			n := b.dropped.Add(1)
			if n%100 == 1 {
				b.logger.Warn("subscriber buffer full, dropping events",
					"session_id", evt.SessionID, "dropped_total", n)
			}
		}
	}
}

// Dropped returns how many events were lost to full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
