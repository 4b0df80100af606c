package health

import (
	"context"
	"fmt"

	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// Probe checks one dependency
type Probe interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

// ProbeFunc adapts a function to a named Probe
type ProbeFunc func(ctx context.Context) (Status, string)

type namedProbe struct {
	name string
	fn   ProbeFunc
}

func (p namedProbe) Name() string { return p.name }

func (p namedProbe) Check(ctx context.Context) (Status, string) { return p.fn(ctx) }

// NewProbe wraps fn as a Probe called name
func NewProbe(name string, fn ProbeFunc) Probe {
	return namedProbe{name: name, fn: fn}
}

// LivenessProbe always reports healthy while the process runs
func LivenessProbe() Probe {
	return NewProbe(constants.CheckLiveness, func(context.Context) (Status, string) {
		return StatusHealthy, "Service is running"
	})
}

// Pinger is a dependency that can be reached with a cheap round trip
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventBusProbe reports the auxiliary messaging dependency. A nil bus means
// it was never configured or failed to connect at startup.
func EventBusProbe(bus Pinger) Probe {
	return NewProbe(constants.CheckRedis, func(ctx context.Context) (Status, string) {
		if bus == nil {
			return StatusUnhealthy, constants.MessageEventBusNotInitialized
		}
		if err := bus.Ping(ctx); err != nil {
			return StatusUnhealthy, fmt.Sprintf("Redis ping failed: %v", err)
		}
		return StatusHealthy, "Redis connection OK"
	})
}

// Backend is the generation API as seen by its probe
type Backend interface {
	Pinger
	HasCredential() bool
}

// GenerationBackendProbe reports whether the generation API is configured and reachable
func GenerationBackendProbe(backend Backend) Probe {
	return NewProbe(constants.CheckOpenAIAPI, func(ctx context.Context) (Status, string) {
		if backend == nil || !backend.HasCredential() {
			return StatusUnhealthy, constants.MessageAPIKeyNotConfigured
		}
		if err := backend.Ping(ctx); err != nil {
			return StatusUnhealthy, err.Error()
		}
		return StatusHealthy, "OpenAI API reachable"
	})
}

// AgentProbe reports whether the local agent wrapper was constructed
func AgentProbe(ready func() bool) Probe {
	return NewProbe(constants.CheckAgent, func(context.Context) (Status, string) {
		if ready == nil || !ready() {
			return StatusUnhealthy, constants.MessageAgentNotInitialized
		}
		return StatusHealthy, "Agent initialized"
	})
}
