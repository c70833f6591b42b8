package goi

import (
	"fmt"
	"log/slog"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/config"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/executor"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/planner"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/adapters/memory"
	redisadapter "github.com/Jamplesmise/prompt-tool-sub006/pkg/adapters/redis"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/events"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/intent"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/observability"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/persistence/middleware"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/ports"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

// Version is stamped by the release build; "dev" otherwise.
var Version = "dev"

// App is the assembled engine: session manager, event plumbing and
// metrics, built from one config. It is the embedding entry point; the
// serving surfaces (HTTP, MCP, CLI) are thin shells around it.
type App struct {
	Manager *session.Manager
	Bus     *events.Bus
	Tracker *events.Tracker
	Metrics *observability.Metrics

	cfg    config.Config
	logger *slog.Logger
	closer func() error
}

// Option configures the App.
type Option func(*app)

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	llm      ports.LLMInvoker
	planner  ports.Planner
	executor ports.Executor
	store    ports.StateStore
}

// WithConfig supplies a loaded configuration. Defaults are used
// otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(a *app) { a.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *app) { a.logger = logger }
}

// WithLLM wires a model for LLM planning and the intent parser
// fallback. Without one, the scripted planner and rules-only parsing
// are used.
func WithLLM(llm ports.LLMInvoker) Option {
	return func(a *app) { a.llm = llm }
}

// WithPlanner overrides the planner.
func WithPlanner(p ports.Planner) Option {
	return func(a *app) { a.planner = p }
}

// WithExecutor overrides the executor. The default simulated registry
// fakes every action type.
func WithExecutor(e ports.Executor) Option {
	return func(a *app) { a.executor = e }
}

// WithStore overrides the state store, bypassing the config's
// memory/redis selection.
func WithStore(s ports.StateStore) Option {
	return func(a *app) { a.store = s }
}

// New assembles the engine.
func New(opts ...Option) (*App, error) {
	b := &app{}
	for _, opt := range opts {
		opt(b)
	}
	if b.cfg == nil {
		cfg := config.Default()
		b.cfg = &cfg
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	cfg := *b.cfg

	if b.planner == nil {
		if b.llm != nil {
			b.planner = planner.NewLLMPlanner(b.llm, planner.WithLogger(b.logger))
		} else {
			b.planner = planner.NewScripted()
		}
	}
	if b.executor == nil {
		b.executor = executor.NewSimulated()
	}

	var closer func() error
	var locker ports.DistributedLocker
	store := b.store
	if store == nil {
		if cfg.Redis.Addr != "" {
			rs := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				redisadapter.WithTTL(cfg.Redis.TTL.Std()))
			store = rs
			closer = rs.Close
			locker = redisadapter.NewLocker(rs.Client(), "goi:")
		} else {
			store = memory.NewStore()
		}
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("reading encryption key: %w", err)
	}
	var mws []middleware.Middleware
	if len(cfg.Security.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Security.PIIPatterns))
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	store = middleware.Chain(store, mws...)

	bus := events.NewBus(events.WithBusLogger(b.logger))
	tracker := events.NewTracker(bus)
	metrics := observability.NewMetrics()

	managerOpts := []session.Option{
		session.WithPublisher(ports.MultiPublisher{tracker, metrics}),
		session.WithLogger(b.logger),
		session.WithThresholds(intent.Thresholds{
			AutoExecute: cfg.Intent.AutoExecuteThreshold,
			Confirm:     cfg.Intent.ConfirmThreshold,
			Clarify:     cfg.Intent.ClarifyThreshold,
		}),
		session.WithLoopConfig(runtime.Config{
			MaxRetries: cfg.Engine.MaxRetries,
			StepDelay:  cfg.Engine.StepDelay.Std(),
		}),
		session.WithMaxClarifyRounds(cfg.Intent.MaxClarifyRounds),
	}
	if b.llm != nil {
		managerOpts = append(managerOpts, session.WithLLM(b.llm))
	}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}

	return &App{
		Manager: session.NewManager(store, b.planner, b.executor, managerOpts...),
		Bus:     bus,
		Tracker: tracker,
		Metrics: metrics,
		cfg:     cfg,
		logger:  b.logger,
		closer:  closer,
	}, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config { return a.cfg }

// Close releases backing resources (the redis client, when one was
// opened).
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer()
	}
	return nil
}
