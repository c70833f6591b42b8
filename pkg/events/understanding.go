package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// Tracker folds lifecycle events into the per-session understanding
// projection: the read-mostly "what does the AI think is going on" view
// collaborating surfaces poll. It implements ports.EventPublisher so it
// can sit in a publisher chain; events pass through to the next
// publisher untouched, followed by an understanding_updated event when
// the projection changed.
type Tracker struct {
	next ports.EventPublisher

	mu   sync.RWMutex
	data map[string]*understandingState
}

type understandingState struct {
	view    domain.Understanding
	settled int
	total   int
}

// NewTracker creates a tracker chaining into next (may be nil).
func NewTracker(next ports.EventPublisher) *Tracker {
	return &Tracker{next: next, data: make(map[string]*understandingState)}
}

// Publish implements ports.EventPublisher.
func (t *Tracker) Publish(ctx context.Context, evt domain.Event) {
	if t.next != nil {
		t.next.Publish(ctx, evt)
	}

	updated := t.fold(evt)
	if updated == nil {
		return
	}
	if t.next != nil {
		t.next.Publish(ctx, domain.NewEvent(domain.EventUnderstandingUpdate, evt.SessionID, *updated))
	}
}

// Understanding returns the current projection for a session, false when
// no events have been seen for it.
func (t *Tracker) Understanding(sessionID string) (domain.Understanding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.data[sessionID]
	if !ok {
		return domain.Understanding{}, false
	}
	return st.view, true
}

// Forget drops a session's projection.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, sessionID)
}

// fold applies one event and returns the new view when it changed.
func (t *Tracker) fold(evt domain.Event) *domain.Understanding {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.data[evt.SessionID]
	if !ok {
		st = &understandingState{}
		t.data[evt.SessionID] = st
	}

	switch payload := evt.Payload.(type) {
	case domain.PlanCreated:
		st.view.CurrentGoal = payload.Goal
		st.view.Summary = payload.Analysis
		st.settled, st.total = 0, payload.ItemCount

	case domain.StatusChange:
		st.view.CurrentPhase = string(payload.To)

	case domain.StepCompleted:
		st.settled++
		st.view.Summary = fmt.Sprintf("%d/%d steps settled", st.settled, st.total)

	case domain.CheckpointCreated:
		if payload.Checkpoint != nil {
			st.view.Summary = payload.Checkpoint.Reason
		}

	case domain.IntentParsed:
		st.view.Confidence = payload.Confidence

	default:
		return nil
	}

	st.view.UpdatedAt = time.Now()
	view := st.view
	return &view
}
