package ports

import (
	"context"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// EventPublisher receives engine lifecycle events. Publication must be
// best-effort and non-blocking: a slow or lost subscriber never stalls
// the agent loop.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event)
}

// PublisherFunc adapts a function to the EventPublisher interface.
type PublisherFunc func(ctx context.Context, evt domain.Event)

// Publish implements EventPublisher.
func (f PublisherFunc) Publish(ctx context.Context, evt domain.Event) { f(ctx, evt) }

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, domain.Event) {}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []EventPublisher

// Publish implements EventPublisher.
func (m MultiPublisher) Publish(ctx context.Context, evt domain.Event) {
	for _, p := range m {
		p.Publish(ctx, evt)
	}
}
