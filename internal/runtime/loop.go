// Package runtime implements the agent loop: the per-session state
// machine that turns a goal into a todo list, executes items in order,
// suspends on checkpoints and resumes on human resolution. The loop owns
// all item status transitions; planners and executors only compute.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/control"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/rules"
	"github.com/google/uuid"
)

// Config tunes execution pacing and retry behavior.
type Config struct {
	// MaxRetries is how many times a failed item is re-attempted before
	// it settles as failed.
	MaxRetries int

	// StepDelay is the base backoff between retry attempts of a failing
	// item. The pause doubles on every further attempt.
	StepDelay time.Duration
}

// FatalPolicy decides whether a settled item failure aborts the whole
// loop. The default aborts on plan-blocking errors and critical items.
type FatalPolicy func(item *domain.TodoItem, err error) bool

// DefaultFatalPolicy fails the loop when the executor reports the plan
// is blocked, or when the failed item is marked critical.
func DefaultFatalPolicy(item *domain.TodoItem, err error) bool {
	return errors.Is(err, domain.ErrPlanBlocked) || (item != nil && item.Critical)
}

// Loop is one session's agent loop. All mutating entry points serialize
// on an operation lock; a second concurrent mutation is rejected with
// domain.ErrConcurrentMutation instead of queueing.
type Loop struct {
	sessionID string
	planner   ports.Planner
	executor  ports.Executor

	rules     *rules.Engine
	control   *control.Manager
	publisher ports.EventPublisher
	logger    *slog.Logger
	fatal     FatalPolicy
	cfg       Config

	op sync.Mutex // serializes Start/Step/Approve/Reject via TryLock

	mu     sync.RWMutex
	status domain.LoopStatus
	goal   string
	todo   *domain.TodoList
	usage  domain.TokenUsage
}

// Option configures the Loop.
type Option func(*Loop)

// WithRules attaches the checkpoint rule engine. Without it every item
// requires confirmation.
func WithRules(engine *rules.Engine) Option {
	return func(l *Loop) { l.rules = engine }
}

// WithControl attaches the control transfer manager so the loop can flip
// the advisory controller value as it runs and suspends.
func WithControl(manager *control.Manager) Option {
	return func(l *Loop) { l.control = manager }
}

// WithPublisher attaches the lifecycle event publisher.
func WithPublisher(pub ports.EventPublisher) Option {
	return func(l *Loop) { l.publisher = pub }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithConfig overrides pacing and retry settings.
func WithConfig(cfg Config) Option {
	return func(l *Loop) { l.cfg = cfg }
}

// WithFatalPolicy overrides the abort decision for failed items.
func WithFatalPolicy(p FatalPolicy) Option {
	return func(l *Loop) { l.fatal = p }
}

// NewLoop creates an idle loop for one session.
func NewLoop(sessionID string, planner ports.Planner, executor ports.Executor, opts ...Option) *Loop {
	l := &Loop{
		sessionID: sessionID,
		planner:   planner,
		executor:  executor,
		publisher: ports.NopPublisher{},
		logger:    logging.NewNop(),
		fatal:     DefaultFatalPolicy,
		status:    domain.LoopIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionID returns the owning session id.
func (l *Loop) SessionID() string { return l.sessionID }

// Status returns the current loop status.
func (l *Loop) Status() domain.LoopStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Goal returns the active goal text.
func (l *Loop) Goal() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.goal
}

// TodoList returns a deep copy of the plan, nil before planning.
func (l *Loop) TodoList() *domain.TodoList {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.todo.Clone()
}

// Usage returns accumulated model token usage.
func (l *Loop) Usage() domain.TokenUsage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.usage
}

// OpenCheckpoint returns the checkpoint view of the waiting item, nil
// when the loop is not suspended.
func (l *Loop) OpenCheckpoint() *domain.Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.todo == nil {
		return nil
	}
	return domain.MaterializeCheckpoint(l.todo.Active())
}

// Start plans the goal. On success the loop lands in executing, or in
// waiting when the first item requires a checkpoint; no item is
// executed inside Start. It is valid from idle or from a terminal
// status; starting over a finished loop begins a fresh plan.
func (l *Loop) Start(ctx context.Context, goal string, planCtx map[string]any) StartResult {
	goal = trimGoal(goal)
	if goal == "" {
		return startFailure(domain.NewCodedError(domain.CodeValidation, "goal must not be empty"), l.Status())
	}

	if !l.op.TryLock() {
		return startFailure(domain.AsCoded(domain.ErrConcurrentMutation), l.Status())
	}
	defer l.op.Unlock()

	l.mu.RLock()
	status := l.status
	l.mu.RUnlock()
	if status != domain.LoopIdle && !status.Terminal() {
		return startFailure(&domain.CodedError{
			Code:    domain.CodeStateConflict,
			Message: fmt.Sprintf("cannot start while %s", status),
			Status:  status,
		}, status)
	}

	l.transition(ctx, domain.LoopPlanning)
	l.logger.Info("planning goal", "session_id", l.sessionID, "goal", goal)

	began := time.Now()
	plan, err := l.planner.Plan(ctx, ports.PlanRequest{
		SessionID: l.sessionID,
		Goal:      goal,
		Context:   planCtx,
	})
	latency := time.Since(began)

	if err == nil && (plan == nil || len(plan.Items) == 0) {
		err = fmt.Errorf("planner produced an empty plan")
	}
	if err != nil {
		l.logger.Warn("planning failed", "session_id", l.sessionID, "err", err)
		// Planning failures are recoverable: the loop returns to idle so
		// the goal can be retried or rephrased.
		l.transition(ctx, domain.LoopIdle)
		return startFailure(&domain.CodedError{
			Code:    domain.CodePlanFailed,
			Message: err.Error(),
			Status:  domain.LoopIdle,
		}, domain.LoopIdle)
	}

	todo := &domain.TodoList{Items: plan.Items}
	for _, it := range todo.Items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.Status = domain.ItemPending
	}

	l.mu.Lock()
	l.goal = goal
	l.todo = todo
	l.usage.Add(plan.Usage)
	l.mu.Unlock()

	l.publish(ctx, domain.EventPlanCreated, domain.PlanCreated{
		Goal:      goal,
		ItemCount: len(todo.Items),
		Analysis:  plan.Analysis,
	})

	l.transition(ctx, domain.LoopExecuting)
	step := l.settle(ctx)

	return StartResult{
		Success:      true,
		Status:       step.Status,
		Todo:         l.TodoList(),
		GoalAnalysis: plan.Analysis,
		Warnings:     plan.Warnings,
		Usage:        l.Usage(),
		LatencyMS:    latency.Milliseconds(),
		Checkpoint:   step.Checkpoint,
	}
}

// Step advances exactly one TodoItem: the next pending item either
// opens a checkpoint and suspends the loop, or executes to a terminal
// status. On an already waiting or terminal loop it reports the current
// position without mutating anything, so it doubles as a resume entry
// point after a snapshot restore.
func (l *Loop) Step(ctx context.Context) (StepResult, error) {
	if !l.op.TryLock() {
		return StepResult{}, domain.ErrConcurrentMutation
	}
	defer l.op.Unlock()

	l.mu.RLock()
	status := l.status
	l.mu.RUnlock()

	switch status {
	case domain.LoopIdle, domain.LoopPlanning:
		return StepResult{}, fmt.Errorf("%w: nothing to step while %s", domain.ErrStateConflict, status)
	case domain.LoopWaiting:
		return StepResult{
			Status:      status,
			Waiting:     true,
			Checkpoint:  l.OpenCheckpoint(),
			CurrentItem: l.activeClone(),
			Note:        "a checkpoint is open; approve or reject it to continue",
		}, nil
	case domain.LoopCompleted, domain.LoopFailed:
		return StepResult{Status: status, Done: true}, nil
	}
	return l.advance(ctx), nil
}

// ApproveCheckpoint resolves the open checkpoint positively and
// executes the approved item. If the immediately following item also
// requires a checkpoint it is surfaced in the same response; items that
// clear the rules are left pending for Step, never run silently here.
func (l *Loop) ApproveCheckpoint(ctx context.Context, req ApproveRequest) (StepResult, error) {
	if !l.op.TryLock() {
		return StepResult{}, domain.ErrConcurrentMutation
	}
	defer l.op.Unlock()

	item, err := l.waitingItem(req.ID)
	if err != nil {
		return StepResult{}, err
	}

	checkpointID := item.CheckpointID
	l.mu.Lock()
	item.Status = domain.ItemInProgress
	item.CheckpointID = ""
	l.mu.Unlock()

	l.publish(ctx, domain.EventCheckpointResolved, domain.CheckpointResolved{
		CheckpointID: checkpointID,
		ItemID:       item.ID,
		Approved:     true,
		Reason:       req.Feedback,
	})
	l.logger.Info("checkpoint approved", "session_id", l.sessionID, "item_id", item.ID)

	l.transition(ctx, domain.LoopExecuting)
	l.runItem(ctx, item, req.Feedback, req.SelectedResourceID)

	l.mu.RLock()
	failed := l.status == domain.LoopFailed
	l.mu.RUnlock()
	if failed {
		return StepResult{Status: domain.LoopFailed, Done: true, CurrentItem: cloneItem(item)}, nil
	}
	return l.settle(ctx), nil
}

// RejectCheckpoint resolves the open checkpoint negatively. A reason is
// mandatory; rejection without one fails validation before any mutation.
// The rejected item settles as skipped and the plan advances the same
// way approval does: a following checkpoint is surfaced, anything else
// stays pending for Step.
func (l *Loop) RejectCheckpoint(ctx context.Context, id, reason string) (StepResult, error) {
	if trimGoal(reason) == "" {
		return StepResult{}, fmt.Errorf("%w: rejection requires a reason", domain.ErrValidation)
	}

	if !l.op.TryLock() {
		return StepResult{}, domain.ErrConcurrentMutation
	}
	defer l.op.Unlock()

	item, err := l.waitingItem(id)
	if err != nil {
		return StepResult{}, err
	}

	checkpointID := item.CheckpointID
	l.mu.Lock()
	item.Status = domain.ItemSkipped
	item.SkipReason = reason
	item.CheckpointID = ""
	l.mu.Unlock()

	l.publish(ctx, domain.EventCheckpointResolved, domain.CheckpointResolved{
		CheckpointID: checkpointID,
		ItemID:       item.ID,
		Approved:     false,
		Reason:       reason,
	})
	l.publish(ctx, domain.EventStepCompleted, domain.StepCompleted{
		ItemID:  item.ID,
		Content: item.Content,
		Status:  domain.ItemSkipped,
	})
	l.logger.Info("checkpoint rejected", "session_id", l.sessionID,
		"item_id", item.ID, "reason", reason)

	l.transition(ctx, domain.LoopExecuting)
	return l.settle(ctx), nil
}

// Snapshot captures the loop into a persistable session state.
func (l *Loop) Snapshot() *domain.SessionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &domain.SessionState{
		SessionID: l.sessionID,
		Status:    l.status,
		Goal:      l.goal,
		Todo:      l.todo.Clone(),
		Usage:     l.usage,
		UpdatedAt: time.Now(),
	}
}

// ApplySnapshot restores a persisted session state. An item caught
// in_progress by the snapshot reverts to pending so it re-executes
// cleanly; a subsequent Step resumes the loop.
func (l *Loop) ApplySnapshot(state *domain.SessionState) error {
	if state == nil {
		return fmt.Errorf("%w: nil snapshot", domain.ErrValidation)
	}
	if !l.op.TryLock() {
		return domain.ErrConcurrentMutation
	}
	defer l.op.Unlock()

	todo := state.Todo.Clone()
	if todo != nil {
		for _, it := range todo.Items {
			if it.Status == domain.ItemInProgress {
				it.Status = domain.ItemPending
			}
		}
	}

	l.mu.Lock()
	l.status = state.Status
	if l.status == domain.LoopPlanning {
		l.status = domain.LoopIdle
	}
	l.goal = state.Goal
	l.todo = todo
	l.usage = state.Usage
	l.mu.Unlock()
	return nil
}

// settle reports the loop position after planning or after an item
// resolved: completed when nothing is pending, waiting when the next
// pending item requires a checkpoint, executing otherwise. It never
// executes an item, so a surfaced checkpoint arrives with no silent
// execution in between. Callers hold the op lock.
func (l *Loop) settle(ctx context.Context) StepResult {
	l.mu.RLock()
	todo := l.todo
	l.mu.RUnlock()

	next := todo.NextPending()
	if next == nil {
		l.transition(ctx, domain.LoopCompleted)
		return StepResult{Status: domain.LoopCompleted, Done: true}
	}

	verdict := l.evaluate(next)
	if verdict.Action.RequiresCheckpoint() {
		checkpoint := l.suspend(ctx, next, verdict)
		return StepResult{
			Status:      domain.LoopWaiting,
			Waiting:     true,
			Checkpoint:  checkpoint,
			CurrentItem: cloneItem(next),
		}
	}
	return StepResult{Status: domain.LoopExecuting, CurrentItem: cloneItem(next)}
}

// advance performs one transition: the next pending item either opens a
// checkpoint or executes to a terminal status. Exactly one item is
// touched per call. Callers hold the op lock.
func (l *Loop) advance(ctx context.Context) StepResult {
	if err := ctx.Err(); err != nil {
		return StepResult{Status: l.Status(), Note: "context canceled"}
	}

	pos := l.settle(ctx)
	if pos.Done || pos.Waiting {
		return pos
	}

	l.mu.Lock()
	item := l.todo.NextPending()
	item.Status = domain.ItemInProgress
	l.mu.Unlock()

	l.runItem(ctx, item, "", "")

	l.mu.RLock()
	failed := l.status == domain.LoopFailed
	noneLeft := l.todo.NextPending() == nil
	l.mu.RUnlock()

	if failed {
		return StepResult{Status: domain.LoopFailed, Done: true, CurrentItem: cloneItem(item)}
	}
	if noneLeft {
		l.transition(ctx, domain.LoopCompleted)
		return StepResult{Status: domain.LoopCompleted, Done: true, CurrentItem: cloneItem(item)}
	}
	return StepResult{Status: l.Status(), CurrentItem: cloneItem(item)}
}

// evaluate asks the rule engine about one item. Without an engine every
// item requires confirmation.
func (l *Loop) evaluate(item *domain.TodoItem) rules.Verdict {
	if l.rules == nil {
		return rules.Verdict{Action: domain.RuleRequireConfirm}
	}
	return l.rules.Evaluate(item)
}

// suspend opens a checkpoint on the item and parks the loop in waiting.
func (l *Loop) suspend(ctx context.Context, item *domain.TodoItem, verdict rules.Verdict) *domain.Checkpoint {
	l.mu.Lock()
	item.Status = domain.ItemWaiting
	item.CheckpointID = domain.DeriveCheckpointID(item.ID, time.Now())
	checkpoint := domain.MaterializeCheckpoint(item)
	l.mu.Unlock()

	l.publish(ctx, domain.EventCheckpointCreated, domain.CheckpointCreated{
		Checkpoint: checkpoint,
		RuleID:     verdict.RuleID,
		Action:     verdict.Action,
	})
	l.logger.Info("checkpoint opened", "session_id", l.sessionID,
		"item_id", item.ID, "rule_id", verdict.RuleID)

	l.transition(ctx, domain.LoopWaiting)
	return checkpoint
}

// waitingItem resolves an approve/reject target. The id may be the
// checkpoint id or the owning item id; both must point at the currently
// waiting item.
func (l *Loop) waitingItem(id string) (*domain.TodoItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.status != domain.LoopWaiting || l.todo == nil {
		return nil, fmt.Errorf("%w: no checkpoint open while %s", domain.ErrStateConflict, l.status)
	}
	item := l.todo.Active()
	if item == nil || item.Status != domain.ItemWaiting {
		return nil, fmt.Errorf("%w: no waiting item", domain.ErrStateConflict)
	}
	if id != "" && id != item.ID && id != item.CheckpointID {
		return nil, fmt.Errorf("%w: checkpoint %q is not the open one", domain.ErrStateConflict, id)
	}
	return item, nil
}

// transition moves the loop status, publishes the change and flips the
// advisory controller to match.
func (l *Loop) transition(ctx context.Context, to domain.LoopStatus) {
	l.mu.Lock()
	from := l.status
	if from == to {
		l.mu.Unlock()
		return
	}
	l.status = to
	l.mu.Unlock()

	l.publish(ctx, domain.EventStatusChanged, domain.StatusChange{From: from, To: to})

	if l.control == nil {
		return
	}
	switch to {
	case domain.LoopExecuting, domain.LoopPlanning:
		l.control.SetController(domain.ControllerAI)
	case domain.LoopWaiting, domain.LoopIdle, domain.LoopCompleted, domain.LoopFailed:
		l.control.SetController(domain.ControllerUser)
	}
}

func (l *Loop) publish(ctx context.Context, t domain.EventType, payload any) {
	l.publisher.Publish(ctx, domain.NewEvent(t, l.sessionID, payload))
}

func (l *Loop) activeClone() *domain.TodoItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.todo == nil {
		return nil
	}
	return cloneItem(l.todo.Active())
}

func cloneItem(item *domain.TodoItem) *domain.TodoItem {
	if item == nil {
		return nil
	}
	list := domain.TodoList{Items: []*domain.TodoItem{item}}
	return list.Clone().Items[0]
}

func trimGoal(s string) string { return strings.TrimSpace(s) }

func startFailure(coded *domain.CodedError, status domain.LoopStatus) StartResult {
	if coded.Status == "" {
		coded.Status = status
	}
	return StartResult{Success: false, Status: status, Err: coded}
}
