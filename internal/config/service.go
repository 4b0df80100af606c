package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// ServiceConfig identifies the running service in health reports and telemetry
type ServiceConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Environment string `json:"environment" yaml:"environment"`
}

// OpenAIConfig contains settings for the text-generation backend
type OpenAIConfig struct {
	APIKey          string        `json:"api_key" yaml:"api_key"`
	BaseURL         string        `json:"base_url" yaml:"base_url"`
	Model           string        `json:"model" yaml:"model"`
	ReasoningEffort string        `json:"reasoning_effort" yaml:"reasoning_effort"`
	Temperature     float64       `json:"temperature" yaml:"temperature"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelay  time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
	HealthTimeout   time.Duration `json:"health_timeout" yaml:"health_timeout"`
}

// AgentConfig contains summarizer agent settings
type AgentConfig struct {
	// InstructionsFile overrides the built-in system instructions when set.
	InstructionsFile string `json:"instructions_file" yaml:"instructions_file"`
}

// EventBusConfig contains settings for the optional Redis event bus
type EventBusConfig struct {
	RedisURL       string        `json:"redis_url" yaml:"redis_url"`
	Stream         string        `json:"stream" yaml:"stream"`
	MaxLen         int64         `json:"max_len" yaml:"max_len"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// DefaultServiceConfig returns default service identity
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        constants.ServiceName,
		Version:     constants.ServiceVersion,
		Environment: "development",
	}
}

// DefaultOpenAIConfig returns default generation backend configuration
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:         "https://api.openai.com/v1",
		Model:           "gpt-4",
		ReasoningEffort: "medium",
		Temperature:     0.3,
		Timeout:         60 * time.Second,
		MaxRetries:      3,
		RetryBaseDelay:  time.Second,
		HealthTimeout:   5 * time.Second,
	}
}

// DefaultAgentConfig returns default agent configuration
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{}
}

// DefaultEventBusConfig returns default event bus configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		Stream:         constants.DefaultEventStream,
		MaxLen:         10000,
		ConnectTimeout: 5 * time.Second,
	}
}

// Validate validates the service configuration
func (s *ServiceConfig) Validate() error {
	if s.Name == "" {
		return errors.New("name cannot be empty")
	}
	if s.Version == "" {
		return errors.New("version cannot be empty")
	}
	return nil
}

// Validate validates the generation backend configuration.
// A missing API key is not an error: the service starts with the agent disabled.
func (o *OpenAIConfig) Validate() error {
	var errs []error

	if o.BaseURL == "" {
		errs = append(errs, errors.New("base_url cannot be empty"))
	} else if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url must be an absolute URL: %s", o.BaseURL))
	}
	if o.Model == "" {
		errs = append(errs, errors.New("model cannot be empty"))
	}

	validEfforts := map[string]bool{"low": true, "medium": true, "high": true}
	if !validEfforts[strings.ToLower(o.ReasoningEffort)] {
		errs = append(errs, fmt.Errorf("invalid reasoning_effort: %s, must be one of: low, medium, high", o.ReasoningEffort))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must be non-negative"))
	}
	if o.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("retry_base_delay must be positive"))
	}
	if o.HealthTimeout <= 0 {
		errs = append(errs, errors.New("health_timeout must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasAPIKey reports whether a credential for the generation backend is configured
func (o *OpenAIConfig) HasAPIKey() bool {
	return strings.TrimSpace(o.APIKey) != ""
}

// Validate validates the event bus configuration. An empty URL disables the bus.
func (e *EventBusConfig) Validate() error {
	if e.RedisURL != "" {
		u, err := url.Parse(e.RedisURL)
		if err != nil {
			return fmt.Errorf("redis_url is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis_url scheme must be redis or rediss, got %q", u.Scheme)
		}
	}
	if e.Stream == "" {
		return errors.New("stream cannot be empty")
	}
	if e.MaxLen < 0 {
		return errors.New("max_len must be non-negative")
	}
	if e.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be positive")
	}
	return nil
}

// Enabled reports whether an event bus connection string is configured
func (e *EventBusConfig) Enabled() bool {
	return e.RedisURL != ""
}
