package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/control"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/intent"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/rules"
)

// lockTTL bounds how long a distributed session lock may outlive its
// holder before expiring on its own.
const lockTTL = 30 * time.Second

// Manager owns the registry of live sessions and their persistence.
// Creating, resuming and removing sessions is safe for concurrent use;
// per-session operation serialization lives inside each loop.
type Manager struct {
	store    ports.StateStore
	planner  ports.Planner
	executor ports.Executor

	publisher  ports.EventPublisher
	locker     ports.DistributedLocker
	logger     *slog.Logger
	llm        ports.LLMInvoker
	thresholds intent.Thresholds
	loopCfg    runtime.Config
	maxRounds  int
	fatal      runtime.FatalPolicy

	mu   sync.Mutex
	live map[string]*Session
}

// Option configures the Manager.
type Option func(*Manager)

// WithPublisher wires the lifecycle event publisher into every session.
func WithPublisher(pub ports.EventPublisher) Option {
	return func(m *Manager) { m.publisher = pub }
}

// WithLocker enables distributed locking around store access, for
// multi-process deployments sharing one store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) { m.locker = locker }
}

// WithLogger configures structured logging.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithLLM injects the model capability used by the intent parser
// fallback.
func WithLLM(llm ports.LLMInvoker) Option {
	return func(m *Manager) { m.llm = llm }
}

// WithThresholds overrides the confidence thresholds.
func WithThresholds(t intent.Thresholds) Option {
	return func(m *Manager) { m.thresholds = t }
}

// WithLoopConfig sets retry and pacing behavior for new loops.
func WithLoopConfig(cfg runtime.Config) Option {
	return func(m *Manager) { m.loopCfg = cfg }
}

// WithMaxClarifyRounds bounds the clarification dialog.
func WithMaxClarifyRounds(n int) Option {
	return func(m *Manager) { m.maxRounds = n }
}

// WithFatalPolicy overrides the loop abort decision.
func WithFatalPolicy(p runtime.FatalPolicy) Option {
	return func(m *Manager) { m.fatal = p }
}

// NewManager creates a session manager.
func NewManager(store ports.StateStore, planner ports.Planner, executor ports.Executor, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		planner:   planner,
		executor:  executor,
		publisher: ports.NopPublisher{},
		logger:    logging.NewNop(),
		live:      make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new session in the given mode. An empty id gets a
// generated one. A live non-terminal session, or a stored non-terminal
// snapshot, under the same id is a conflict.
func (m *Manager) Create(ctx context.Context, id string, mode domain.Mode) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if mode == "" {
		mode = domain.ModeAssisted
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	}

	unlock, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	m.mu.Lock()
	if existing, ok := m.live[id]; ok && !existing.Status().Terminal() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, id)
	}
	m.mu.Unlock()

	if m.store != nil {
		stored, err := m.store.Load(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("checking session existence: %w", err)
		}
		if stored != nil && !stored.Status.Terminal() && stored.Status != domain.LoopIdle {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, id)
		}
	}

	s := m.build(id, mode)
	s.persist(ctx)

	m.mu.Lock()
	m.live[id] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "mode", mode)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.live[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Has reports whether the session is live in this process.
func (m *Manager) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[id]
	return ok
}

// Resume returns the live session or rebuilds one from its stored
// snapshot. A restored waiting session picks up exactly at its open
// checkpoint.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.live[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	unlock, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	state, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	mode := state.Control.Mode
	if !mode.Valid() {
		mode = domain.ModeAssisted
	}
	s := m.build(id, mode)
	if err := s.restore(state); err != nil {
		return nil, fmt.Errorf("restoring session %s: %w", id, err)
	}

	m.mu.Lock()
	m.live[id] = s
	m.mu.Unlock()

	m.logger.Info("session resumed", "session_id", id, "status", state.Status)
	return s, nil
}

// Remove drops the live session and deletes its snapshot.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

// List returns all known session ids: live ones merged with stored
// snapshots, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	m.mu.Lock()
	for id := range m.live {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()

	if m.store != nil {
		stored, err := m.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range stored {
			seen[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// build assembles one session's component bundle and wires the mode
// cascade: a mode change swaps the rule preset and is published as a
// control transfer.
func (m *Manager) build(id string, mode domain.Mode) *Session {
	engine := rules.NewEngine(mode)

	s := &Session{
		id:        id,
		rules:     engine,
		store:     m.store,
		publisher: m.publisher,
		logger:    m.logger,
		evaluator: intent.NewEvaluator(m.thresholds),
	}

	s.control = control.NewManager(mode,
		control.WithModeHook(func(next domain.Mode) {
			if err := engine.SwitchModeRules(next); err != nil {
				m.logger.Warn("preset switch failed", "session_id", id, "err", err)
				return
			}
			m.publisher.Publish(context.Background(),
				domain.NewEvent(domain.EventControlTransferred, id, domain.ControlTransferred{
					Controller: s.control.Controller(),
					Mode:       next,
				}))
		}),
		control.WithControllerHook(func(state domain.ControllerState) {
			m.publisher.Publish(context.Background(),
				domain.NewEvent(domain.EventControlTransferred, id, domain.ControlTransferred{
					Controller: state.Controller,
					Mode:       state.Mode,
				}))
		}),
	)

	loopOpts := []runtime.Option{
		runtime.WithRules(engine),
		runtime.WithControl(s.control),
		runtime.WithPublisher(m.publisher),
		runtime.WithLogger(m.logger),
		runtime.WithConfig(m.loopCfg),
	}
	if m.fatal != nil {
		loopOpts = append(loopOpts, runtime.WithFatalPolicy(m.fatal))
	}
	s.loop = runtime.NewLoop(id, m.planner, m.executor, loopOpts...)

	parserOpts := []intent.ParserOption{intent.WithParserLogger(m.logger)}
	if m.llm != nil {
		parserOpts = append(parserOpts, intent.WithLLM(m.llm))
	}
	s.parser = intent.NewParser(parserOpts...)

	dialogOpts := []intent.DialogOption{}
	if m.maxRounds > 0 {
		dialogOpts = append(dialogOpts, intent.WithMaxRounds(m.maxRounds))
	}
	s.dialog = intent.NewDialog(s.evaluator, dialogOpts...)

	return s
}

// lock takes the distributed lock when one is configured.
func (m *Manager) lock(ctx context.Context, id string) (ports.UnlockFunc, error) {
	if m.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	unlock, err := m.locker.Lock(ctx, id, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring session lock: %w", err)
	}
	return func(ctx context.Context) error {
		if err := unlock(ctx); err != nil {
			m.logger.Warn("failed to release session lock, TTL will expire it",
				"session_id", id, "err", err)
		}
		return nil
	}, nil
}
