package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/control"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/intent"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/rules"
)

// Session is one live collaboration: the agent loop plus the rule
// engine, control manager and intent pipeline that drive it. Mutations
// snapshot to the state store so the session survives process restart.
type Session struct {
	id string

	loop    *runtime.Loop
	rules   *rules.Engine
	control *control.Manager

	parser    *intent.Parser
	evaluator *intent.Evaluator
	dialog    *intent.Dialog

	store     ports.StateStore
	publisher ports.EventPublisher
	logger    *slog.Logger

	mu       sync.Mutex
	clarify  *domain.ClarificationState
	pending  *domain.ParsedIntent // confirmed-by-human gate
	userID   string
	modelID  string
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Loop exposes the underlying agent loop for read-oriented callers.
func (s *Session) Loop() *runtime.Loop { return s.loop }

// Rules exposes the checkpoint rule engine.
func (s *Session) Rules() *rules.Engine { return s.rules }

// Control exposes the control transfer manager.
func (s *Session) Control() *control.Manager { return s.control }

// Status returns the loop status.
func (s *Session) Status() domain.LoopStatus { return s.loop.Status() }

// Start plans and executes a goal, then persists the snapshot.
func (s *Session) Start(ctx context.Context, goal string, planCtx map[string]any) runtime.StartResult {
	res := s.loop.Start(ctx, goal, planCtx)
	s.persist(ctx)
	return res
}

// Step advances the loop by one item and persists.
func (s *Session) Step(ctx context.Context) (runtime.StepResult, error) {
	res, err := s.loop.Step(ctx)
	if err == nil {
		s.persist(ctx)
	}
	return res, err
}

// Approve resolves the open checkpoint positively and persists.
func (s *Session) Approve(ctx context.Context, req runtime.ApproveRequest) (runtime.StepResult, error) {
	res, err := s.loop.ApproveCheckpoint(ctx, req)
	if err == nil {
		s.persist(ctx)
	}
	return res, err
}

// Reject resolves the open checkpoint negatively and persists.
func (s *Session) Reject(ctx context.Context, id, reason string) (runtime.StepResult, error) {
	res, err := s.loop.RejectCheckpoint(ctx, id, reason)
	if err == nil {
		s.persist(ctx)
	}
	return res, err
}

// SetMode switches the collaboration mode. The rule preset cascade is
// wired at construction; resolved checkpoints stay resolved.
func (s *Session) SetMode(ctx context.Context, mode domain.Mode) error {
	if err := s.control.SetMode(mode); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// AddRules installs user checkpoint rules and persists them.
func (s *Session) AddRules(ctx context.Context, incoming []domain.CheckpointRule) error {
	if err := s.rules.AddUserRules(incoming); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// UtteranceResult is the outcome of handling one free-text command.
type UtteranceResult struct {
	Intent     *domain.ParsedIntent    `json:"intent,omitempty"`
	Action     domain.ConfidenceAction `json:"action"`
	Confidence float64                 `json:"confidence"`

	// Question and Options are set when clarification is needed.
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`

	// NeedsConfirm is set when the intent is plausible but must be
	// confirmed through Confirm before anything executes.
	NeedsConfirm bool `json:"needs_confirm"`

	// Started carries the loop result when the intent auto-executed.
	Started *runtime.StartResult `json:"started,omitempty"`

	// GaveUp is set when clarification rounds ran out or parsing failed
	// entirely; Message explains it.
	GaveUp  bool   `json:"gave_up,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandleUtterance runs the full intent pipeline on one human input.
// When a clarification dialog is open the text is treated as its reply.
func (s *Session) HandleUtterance(ctx context.Context, text string, rctx intent.Context) (*UtteranceResult, error) {
	s.mu.Lock()
	open := s.clarify
	s.mu.Unlock()

	if open != nil {
		return s.handleClarifyReply(ctx, open, text, rctx)
	}

	parsed, err := s.parser.Parse(ctx, text, rctx)
	if err != nil {
		if coded := domain.AsCoded(err); coded.Code == domain.CodeUnparsable {
			return &UtteranceResult{
				Action:  domain.ConfidenceReject,
				GaveUp:  true,
				Message: "could not understand the request",
			}, nil
		}
		return nil, err
	}

	assessment := s.evaluator.Evaluate(parsed, rctx)
	s.publishIntent(ctx, parsed, assessment)
	return s.dispatch(ctx, parsed, assessment, rctx)
}

// Confirm resolves a pending intent confirmation. Approving starts the
// loop on the confirmed goal; declining drops the intent.
func (s *Session) Confirm(ctx context.Context, approve bool) (*UtteranceResult, error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return nil, fmt.Errorf("%w: nothing awaiting confirmation", domain.ErrStateConflict)
	}
	if !approve {
		return &UtteranceResult{
			Intent:  pending,
			Action:  domain.ConfidenceReject,
			Message: "intent discarded",
		}, nil
	}
	started := s.Start(ctx, pending.RawText, intentContext(pending))
	return &UtteranceResult{
		Intent:  pending,
		Action:  domain.ConfidenceAutoExecute,
		Started: &started,
	}, nil
}

// dispatch routes a scored intent to its pipeline outcome.
func (s *Session) dispatch(ctx context.Context, parsed *domain.ParsedIntent, assessment intent.Assessment, rctx intent.Context) (*UtteranceResult, error) {
	switch assessment.Action {
	case domain.ConfidenceAutoExecute:
		started := s.Start(ctx, parsed.RawText, intentContext(parsed))
		return &UtteranceResult{
			Intent:     parsed,
			Action:     assessment.Action,
			Confidence: assessment.Score,
			Started:    &started,
		}, nil

	case domain.ConfidenceConfirm:
		s.mu.Lock()
		s.pending = parsed
		s.mu.Unlock()
		return &UtteranceResult{
			Intent:       parsed,
			Action:       assessment.Action,
			Confidence:   assessment.Score,
			NeedsConfirm: true,
			Question:     fmt.Sprintf("Should I go ahead with: %s?", parsed.RawText),
		}, nil

	case domain.ConfidenceClarify:
		state := s.dialog.Begin(parsed, assessment, rctx)
		s.mu.Lock()
		s.clarify = state
		s.mu.Unlock()
		return &UtteranceResult{
			Intent:     parsed,
			Action:     assessment.Action,
			Confidence: assessment.Score,
			Question:   state.Question,
			Options:    state.Options,
		}, nil

	default:
		return &UtteranceResult{
			Intent:     parsed,
			Action:     domain.ConfidenceReject,
			Confidence: assessment.Score,
			GaveUp:     true,
			Message:    "could not understand the request",
		}, nil
	}
}

func (s *Session) handleClarifyReply(ctx context.Context, state *domain.ClarificationState, text string, rctx intent.Context) (*UtteranceResult, error) {
	out := s.dialog.ProcessResponse(state, text, rctx)

	s.mu.Lock()
	s.clarify = out.State
	s.mu.Unlock()

	if out.GaveUp {
		return &UtteranceResult{
			Intent:  out.Intent,
			Action:  domain.ConfidenceReject,
			GaveUp:  true,
			Message: "could not understand the request after clarification",
		}, nil
	}
	if out.State != nil {
		return &UtteranceResult{
			Intent:     out.Intent,
			Action:     domain.ConfidenceClarify,
			Confidence: out.Assessment.Score,
			Question:   out.State.Question,
			Options:    out.State.Options,
		}, nil
	}
	return s.dispatch(ctx, out.Intent, out.Assessment, rctx)
}

func (s *Session) publishIntent(ctx context.Context, parsed *domain.ParsedIntent, assessment intent.Assessment) {
	s.publisher.Publish(ctx, domain.NewEvent(domain.EventIntentParsed, s.id, domain.IntentParsed{
		Category:   parsed.Category,
		Confidence: assessment.Score,
		Source:     parsed.Source,
		Action:     assessment.Action,
	}))
}

// Snapshot assembles the full persistable state: loop state plus
// control, user rules and identity fields.
func (s *Session) Snapshot() *domain.SessionState {
	state := s.loop.Snapshot()
	state.Control = s.control.State()
	state.UserRules = s.rules.UserRules()

	s.mu.Lock()
	state.UserID = s.userID
	state.ModelID = s.modelID
	s.mu.Unlock()

	state.Understand = s.understanding(state)
	return state
}

// understanding derives the shared projection from the snapshot.
func (s *Session) understanding(state *domain.SessionState) domain.Understanding {
	u := domain.Understanding{
		CurrentGoal:  state.Goal,
		CurrentPhase: string(state.Status),
		UpdatedAt:    time.Now(),
	}
	if state.Todo != nil {
		done, total := state.Todo.Progress()
		u.Summary = fmt.Sprintf("%d/%d steps settled", done, total)
		for _, it := range state.Todo.Items {
			if it.Action.ResourceName != "" {
				u.SelectedResources = append(u.SelectedResources, it.Action.ResourceName)
			}
		}
	}
	return u
}

// persist saves the snapshot, logging instead of failing the mutation.
// The in-memory session stays authoritative; a missed save only costs
// durability until the next one.
func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.id, s.Snapshot()); err != nil {
		s.logger.Warn("snapshot save failed", "session_id", s.id, "err", err)
	}
}

// restore applies a stored snapshot to the bundled components.
func (s *Session) restore(state *domain.SessionState) error {
	if err := s.loop.ApplySnapshot(state); err != nil {
		return err
	}
	s.rules.SetUserRules(state.UserRules)
	if state.Control.Mode != "" {
		if err := s.control.SetMode(state.Control.Mode); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.userID = state.UserID
	s.modelID = state.ModelID
	s.mu.Unlock()
	return nil
}

// intentContext exposes recognized entities to the planner.
func intentContext(parsed *domain.ParsedIntent) map[string]any {
	if parsed == nil {
		return nil
	}
	out := map[string]any{"category": string(parsed.Category)}
	for _, e := range parsed.Entities {
		switch e.Type {
		case domain.EntityResourceType:
			out["resource_type"] = e.ResourceType
		case domain.EntityResourceName:
			out["resource_name"] = e.Value
			if e.ResourceID != "" {
				out["resource_id"] = e.ResourceID
			}
		}
	}
	return out
}
