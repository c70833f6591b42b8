package runtime

import (
	"context"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
)

// runItem executes one item through the gather/perform/verify phases,
// retrying per config with a doubling StepDelay backoff between
// attempts, and settles its status. A fatal settled failure also fails
// the loop. Callers hold the op lock and have already moved the item to
// in_progress.
func (l *Loop) runItem(ctx context.Context, item *domain.TodoItem, feedback, selectedResourceID string) {
	req := &ports.ExecuteRequest{
		SessionID:          l.sessionID,
		Item:               item,
		Feedback:           feedback,
		SelectedResourceID: selectedResourceID,
	}

	var res *ports.ExecuteResult
	var err error
	attempts := l.cfg.MaxRetries + 1
	backoff := l.cfg.StepDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		l.mu.Lock()
		item.Attempts = attempt
		l.mu.Unlock()

		res, err = l.attempt(ctx, req)
		if err == nil {
			break
		}
		l.logger.Warn("item attempt failed", "session_id", l.sessionID,
			"item_id", item.ID, "attempt", attempt, "err", err)
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		if backoff > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if err != nil {
		l.settleFailure(ctx, item, err)
		return
	}

	l.mu.Lock()
	item.Status = domain.ItemCompleted
	item.Result = &domain.ItemResult{
		Success:     true,
		Payload:     payloadOf(res),
		CompletedAt: time.Now(),
	}
	if res != nil {
		l.usage.Add(res.Usage)
	}
	l.mu.Unlock()

	l.publish(ctx, domain.EventStepCompleted, domain.StepCompleted{
		ItemID:  item.ID,
		Content: item.Content,
		Status:  domain.ItemCompleted,
	})
	l.logger.Info("item completed", "session_id", l.sessionID, "item_id", item.ID)
}

// attempt runs one gather/perform/verify pass.
func (l *Loop) attempt(ctx context.Context, req *ports.ExecuteRequest) (*ports.ExecuteResult, error) {
	if err := l.executor.Gather(ctx, req); err != nil {
		return nil, err
	}
	res, err := l.executor.Perform(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := l.executor.Verify(ctx, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// settleFailure marks the item failed and, when the failure is fatal,
// fails the loop. Non-fatal failures let the remaining plan continue.
func (l *Loop) settleFailure(ctx context.Context, item *domain.TodoItem, err error) {
	l.mu.Lock()
	item.Status = domain.ItemFailed
	item.Result = &domain.ItemResult{
		Success:     false,
		Error:       err.Error(),
		CompletedAt: time.Now(),
	}
	l.mu.Unlock()

	l.publish(ctx, domain.EventStepCompleted, domain.StepCompleted{
		ItemID:  item.ID,
		Content: item.Content,
		Status:  domain.ItemFailed,
		Error:   err.Error(),
	})

	if l.fatal != nil && l.fatal(item, err) {
		l.logger.Error("fatal item failure, aborting loop",
			"session_id", l.sessionID, "item_id", item.ID, "err", err)
		l.transition(ctx, domain.LoopFailed)
		return
	}
	l.logger.Warn("item failed, continuing", "session_id", l.sessionID,
		"item_id", item.ID, "err", err)
}

func payloadOf(res *ports.ExecuteResult) any {
	if res == nil {
		return nil
	}
	return res.Payload
}
