// Package health aggregates dependency probes into a single report.
//
// The overall status follows the liveness entry only: a failing cache or
// generation backend marks its own entry unhealthy but never the service,
// so platform health checkers do not restart an instance that can still
// answer requests.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/observability"
)

// Status is the state of a single check or of the whole service
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultProbeTimeout bounds a single probe when no timeout option is given
const DefaultProbeTimeout = 5 * time.Second

// CheckResult is an immutable snapshot of one probe outcome
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Healthy reports whether the result is healthy
func (r CheckResult) Healthy() bool {
	return r.Status == StatusHealthy
}

// Report is the aggregate health document returned by CheckHealth
type Report struct {
	ServiceName string        `json:"service_name"`
	Version     string        `json:"version"`
	Environment string        `json:"environment,omitempty"`
	Status      Status        `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Uptime      string        `json:"uptime"`
	Checks      []CheckResult `json:"checks"`
}

// Check returns the entry with the given name
func (r Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Healthy reports whether the overall status is healthy
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// MetricsRecorder receives the outcome of every check run
type MetricsRecorder interface {
	SetHealthStatus(healthy bool)
	SetCheckStatus(check string, healthy bool)
}

// Option configures a Checker
type Option func(*Checker)

// WithEnvironment sets the environment reported alongside the service name
func WithEnvironment(env string) Option {
	return func(c *Checker) { c.environment = env }
}

// WithProbeTimeout bounds how long a single probe may run
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(c *Checker) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithTracer(t *observability.Tracer) Option {
	return func(c *Checker) { c.tracer = t }
}

// Checker runs registered probes and builds a Report
type Checker struct {
	serviceName string
	version     string
	environment string
	startedAt   time.Time
	timeout     time.Duration

	mu     sync.RWMutex
	probes []registeredProbe

	metrics MetricsRecorder
	tracer  *observability.Tracer
	logger  *zap.Logger
	now     func() time.Time
}

// NewChecker creates a checker with the liveness probe already registered
func NewChecker(serviceName, version string, opts ...Option) *Checker {
	c := &Checker{
		serviceName: serviceName,
		version:     version,
		timeout:     DefaultProbeTimeout,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.now()
	c.probes = []registeredProbe{{name: constants.CheckLiveness, probe: LivenessProbe()}}
	return c
}

// registeredProbe pins the name read once at registration
type registeredProbe struct {
	name  string
	probe Probe
}

// Register appends a probe. Results keep registration order.
// Registering a probe under an existing name replaces it in place.
func (c *Checker) Register(probe Probe) {
	if probe == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := registeredProbe{name: c.probeName(probe, len(c.probes)), probe: probe}
	for i, p := range c.probes {
		if p.name == entry.name {
			c.probes[i] = entry
			return
		}
	}
	c.probes = append(c.probes, entry)
}

// probeName calls probe.Name, falling back to a positional name if it panics
func (c *Checker) probeName(probe Probe, index int) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = fmt.Sprintf("probe_%d", index)
			c.logger.Error("Health probe name panicked",
				zap.String("check", name),
				zap.Any("panic", r),
			)
		}
	}()
	return probe.Name()
}

// Names returns the registered probe names in order
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.probes))
	for i, p := range c.probes {
		names[i] = p.name
	}
	return names
}

// CheckHealth runs every probe concurrently and aggregates the results.
// It never fails: panics and timeouts become unhealthy entries.
func (c *Checker) CheckHealth(ctx context.Context) Report {
	c.mu.RLock()
	probes := make([]registeredProbe, len(c.probes))
	copy(probes, c.probes)
	c.mu.RUnlock()

	if c.tracer != nil {
		var span oteltrace.Span
		ctx, span = c.tracer.StartSpan(ctx, "health_check", attribute.Int("health.probes", len(probes)))
		defer span.End()
	}

	results := make([]CheckResult, len(probes))
	var wg sync.WaitGroup
	for i, probe := range probes {
		wg.Add(1)
		go func(i int, probe registeredProbe) {
			defer wg.Done()
			results[i] = c.run(ctx, probe.name, probe.probe)
		}(i, probe)
	}
	wg.Wait()

	overall := StatusUnhealthy
	for _, r := range results {
		if r.Name == constants.CheckLiveness {
			overall = r.Status
			break
		}
	}

	now := c.now()
	report := Report{
		ServiceName: c.serviceName,
		Version:     c.version,
		Environment: c.environment,
		Status:      overall,
		Timestamp:   now.UTC(),
		Uptime:      now.Sub(c.startedAt).Round(time.Second).String(),
		Checks:      results,
	}

	c.record(report)
	return report
}

// run executes a single probe with a timeout and panic recovery.
// Probes are bounded by their own timeout, not by the caller's cancellation.
func (c *Checker) run(ctx context.Context, name string, probe Probe) CheckResult {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Health probe panicked",
					zap.String("check", name),
					zap.Any("panic", r),
				)
				done <- CheckResult{Name: name, Status: StatusUnhealthy, Message: fmt.Sprint(r)}
			}
		}()

		status, message := probe.Check(probeCtx)
		if status != StatusHealthy {
			status = StatusUnhealthy
		}
		done <- CheckResult{Name: name, Status: status, Message: message}
	}()

	select {
	case result := <-done:
		return result
	case <-probeCtx.Done():
		return CheckResult{
			Name:    name,
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("check timed out: %v", probeCtx.Err()),
		}
	}
}

func (c *Checker) record(report Report) {
	for _, r := range report.Checks {
		if !r.Healthy() {
			c.logger.Warn("Dependency check unhealthy",
				zap.String("check", r.Name),
				zap.String("message", r.Message),
			)
		}
	}

	if c.metrics == nil {
		return
	}
	c.metrics.SetHealthStatus(report.Healthy())
	for _, r := range report.Checks {
		c.metrics.SetCheckStatus(r.Name, r.Healthy())
	}
}
