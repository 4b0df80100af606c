// Package app builds the dependency graph shared by the HTTP server and the
// CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/agent"
	"github.com/leslieo2/agent-summarizer/internal/apidoc"
	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/eventbus"
	"github.com/leslieo2/agent-summarizer/internal/health"
	"github.com/leslieo2/agent-summarizer/internal/hotreload"
	"github.com/leslieo2/agent-summarizer/internal/llm"
	"github.com/leslieo2/agent-summarizer/internal/observability"
)

// Container holds every long-lived dependency. EventBus, Agent and
// HotReload are nil when the corresponding dependency is unavailable.
type Container struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	APIDoc  *apidoc.Document

	EventBus  *eventbus.Bus
	LLM       *llm.Client
	Agent     *agent.Summarizer
	Health    *health.Checker
	HotReload *hotreload.Manager

	StartedAt time.Time
}

// Option customizes Build, mostly for tests
type Option func(*buildOptions)

type buildOptions struct {
	logger    *observability.Logger
	llmOpts   []llm.Option
	generator agent.Generator
}

// WithLogger replaces the logger built from configuration
func WithLogger(l *observability.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithLLMOptions passes extra options to the generation client
func WithLLMOptions(opts ...llm.Option) Option {
	return func(o *buildOptions) { o.llmOpts = append(o.llmOpts, opts...) }
}

// WithGenerator makes the agent use gen instead of the generation client
func WithGenerator(gen agent.Generator) Option {
	return func(o *buildOptions) { o.generator = gen }
}

// Build wires the container. Only configuration and observability failures
// are fatal; a missing event bus or credential leaves that dependency nil.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	logger := bo.logger
	if logger == nil {
		var err error
		logger, err = observability.NewLogger(cfg.Observability.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	metrics := observability.NewMetrics()
	if err := metrics.Register(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	tracingCfg := cfg.Observability.Tracing
	tracingCfg.ServiceName = cfg.Service.Name
	tracingCfg.Version = cfg.Service.Version
	tracingCfg.Environment = cfg.Service.Environment
	tracer, err := observability.NewTracer(tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	doc, err := apidoc.Load()
	if err != nil {
		_ = tracer.Shutdown(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to load API document: %w", err)
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Tracer:    tracer,
		APIDoc:    doc,
		StartedAt: time.Now(),
	}

	c.EventBus = c.connectEventBus(ctx)

	llmOpts := append([]llm.Option{
		llm.WithLogger(logger.Named("llm").Logger),
		llm.WithMetrics(metrics),
		llm.WithTracer(tracer),
	}, bo.llmOpts...)
	c.LLM = llm.NewClient(cfg.OpenAI, llmOpts...)

	var generator agent.Generator = c.LLM
	if bo.generator != nil {
		generator = bo.generator
	}
	if err := c.buildAgent(generator); err != nil {
		if closeErr := c.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Warn("Failed to release partially built container", zap.Error(closeErr))
		}
		return nil, err
	}

	c.Health = c.buildHealth()

	if err := c.startHotReload(); err != nil {
		logger.Warn("Hot reload disabled", zap.Error(err))
	}

	return c, nil
}

func (c *Container) connectEventBus(ctx context.Context) *eventbus.Bus {
	cfg := c.Config.EventBus
	if !cfg.Enabled() {
		c.Logger.Info("Event bus not configured")
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	bus, err := eventbus.New(connectCtx, cfg.RedisURL,
		eventbus.WithStream(cfg.Stream),
		eventbus.WithMaxLen(cfg.MaxLen),
		eventbus.WithSource(c.Config.Service.Name),
		eventbus.WithLogger(c.Logger.Named("eventbus").Logger),
		eventbus.WithMetrics(c.Metrics),
	)
	if err != nil {
		c.Logger.Warn("Event bus unavailable, continuing without it", zap.Error(err))
		return nil
	}
	return bus
}

func (c *Container) buildAgent(gen agent.Generator) error {
	summarizer, err := agent.New(gen, agent.Config{
		Model:            c.Config.OpenAI.Model,
		ReasoningEffort:  c.Config.OpenAI.ReasoningEffort,
		Temperature:      c.Config.OpenAI.Temperature,
		InstructionsFile: c.Config.Agent.InstructionsFile,
	},
		agent.WithLogger(c.Logger.Named("agent").Logger),
		agent.WithMetrics(c.Metrics),
		agent.WithTracer(c.Tracer),
	)
	switch {
	case errors.Is(err, agent.ErrCredentialMissing):
		c.Logger.Warn("OpenAI API key not configured, summarizer agent disabled")
		return nil
	case err != nil:
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	c.Agent = summarizer
	c.Logger.Info("Summarizer agent initialized",
		zap.String("agent", summarizer.Name()),
		zap.String("model", summarizer.Model()),
	)
	return nil
}

func (c *Container) buildHealth() *health.Checker {
	checker := health.NewChecker(c.Config.Service.Name, c.Config.Service.Version,
		health.WithEnvironment(c.Config.Service.Environment),
		health.WithProbeTimeout(c.Config.OpenAI.HealthTimeout+time.Second),
		health.WithMetrics(c.Metrics),
		health.WithLogger(c.Logger.Named("health").Logger),
		health.WithTracer(c.Tracer),
	)

	// A nil *eventbus.Bus must reach the probe as a nil interface.
	var bus health.Pinger
	if c.EventBus != nil {
		bus = c.EventBus
	}
	checker.Register(health.EventBusProbe(bus))
	checker.Register(health.GenerationBackendProbe(c.LLM))
	checker.Register(health.AgentProbe(c.AgentReady))
	return checker
}

func (c *Container) startHotReload() error {
	cfg := c.Config
	if !cfg.WatchesInstructions() || c.Agent == nil {
		return nil
	}

	manager, err := hotreload.NewManager(cfg.HotReload, c.Logger.Named("hotreload").Logger)
	if err != nil {
		return err
	}
	if err := manager.AddWatch(cfg.Agent.InstructionsFile); err != nil {
		manager.Stop()
		return err
	}
	if err := manager.RegisterReloadable(c.Agent); err != nil {
		manager.Stop()
		return err
	}
	if c.EventBus != nil {
		bus := c.EventBus
		if err := manager.AddListener("event_bus", func(ctx context.Context, result hotreload.Result) error {
			if len(result.Reloaded) == 0 {
				return nil
			}
			_, err := bus.Publish(ctx, constants.EventInstructionsReloaded, map[string]any{
				"components": result.Reloaded,
			})
			return err
		}); err != nil {
			manager.Stop()
			return err
		}
	}
	if err := manager.Start(); err != nil {
		manager.Stop()
		return err
	}

	c.HotReload = manager
	return nil
}

// AgentReady reports whether the summarizer agent was constructed
func (c *Container) AgentReady() bool {
	return c.Agent != nil
}

// Close releases resources in reverse construction order
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.HotReload != nil {
		if err := c.HotReload.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("hot reload shutdown: %w", err))
		}
	}
	if c.EventBus != nil {
		if err := c.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus close: %w", err))
		}
	}
	if err := c.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	_ = c.Logger.Sync()

	return errors.Join(errs...)
}
