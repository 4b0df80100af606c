package config

import (
	"errors"
	"fmt"
)

// Config represents the unified configuration structure
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Service       ServiceConfig       `json:"service" yaml:"service"`
	OpenAI        OpenAIConfig        `json:"openai" yaml:"openai"`
	Agent         AgentConfig         `json:"agent" yaml:"agent"`
	EventBus      EventBusConfig      `json:"event_bus" yaml:"event_bus"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	HotReload     HotReloadConfig     `json:"hot_reload" yaml:"hot_reload"`
	TLS           TLSConfig           `json:"tls" yaml:"tls"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Service:       DefaultServiceConfig(),
		OpenAI:        DefaultOpenAIConfig(),
		Agent:         DefaultAgentConfig(),
		EventBus:      DefaultEventBusConfig(),
		Security:      DefaultSecurityConfig(),
		Observability: DefaultObservabilityConfig(),
		HotReload:     DefaultHotReloadConfig(),
		TLS:           DefaultTLSConfig(),
	}
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server config validation failed: %w", err))
	}
	if err := c.Service.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("service config validation failed: %w", err))
	}
	if err := c.OpenAI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("openai config validation failed: %w", err))
	}
	if err := c.EventBus.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("event bus config validation failed: %w", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("security config validation failed: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability config validation failed: %w", err))
	}
	if err := c.HotReload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hot reload config validation failed: %w", err))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls config validation failed: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetMetricsAddress returns the full metrics server address
func (c *Config) GetMetricsAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.MetricsPort)
}

// IsAuthEnabled returns whether authentication is enabled
func (c *Config) IsAuthEnabled() bool {
	return c.Security.Auth.Enabled
}

// IsRateLimitEnabled returns whether rate limiting is enabled
func (c *Config) IsRateLimitEnabled() bool {
	return c.Security.RateLimit.Enabled
}
