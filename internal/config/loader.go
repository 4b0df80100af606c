package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration with precedence:
// 1. Explicit CLI flags (highest priority)
// 2. Environment variables
// 3. Configuration file values
// 4. Default configuration values (lowest priority)
func LoadConfig(configFile string, cliFlags *CLIFlags) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadFromFile(configFile, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(config)

	if cliFlags != nil {
		overrideWithCLI(config, cliFlags)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// CLIFlags contains CLI flag values that can override configuration.
// Only flags marked as changed on Flags take effect.
type CLIFlags struct {
	Flags *pflag.FlagSet

	Host             *string
	Port             *string
	MetricsPort      *string
	ShutdownTimeout  *time.Duration
	OpenAIModel      *string
	OpenAIBaseURL    *string
	RedisURL         *string
	InstructionsFile *string
	LogLevel         *string
	Environment      *string
	AuthEnabled      *bool
	RateLimitEnabled *bool
	RateLimitRPS     *int
	TracingEnabled   *bool
	HotReload        *bool
}

// changed reports whether the named flag was explicitly set
func (f *CLIFlags) changed(name string) bool {
	if f.Flags == nil {
		return false
	}
	flag := f.Flags.Lookup(name)
	return flag != nil && flag.Changed
}

// loadFromFile decodes a YAML or JSON file on top of config. Keys present in
// the file replace the current values, including zero values; absent keys
// leave them untouched.
func loadFromFile(filePath string, config *Config) error {
	if !filepath.IsAbs(filePath) {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", filePath, err)
		}
		filePath = absPath
	}

	if err := validateFilePath(filePath); err != nil {
		return fmt.Errorf("invalid config file path %s: %w", filePath, err)
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - file path validated by validateFilePath()
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	ext := filepath.Ext(filePath)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

// firstEnv returns the first non-empty value among the given variables
func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

func envDuration(name string, target *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			*target = duration
		}
	}
}

func envBool(name string, target *bool) {
	if val := os.Getenv(name); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			*target = enabled
		}
	}
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	// Server configuration
	if val := os.Getenv(constants.EnvHost); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv(constants.EnvPort); val != "" {
		config.Server.Port = val
	}
	if val := os.Getenv(constants.EnvMetricsPort); val != "" {
		config.Server.MetricsPort = val
	}
	envDuration(constants.EnvReadTimeout, &config.Server.ReadTimeout)
	envDuration(constants.EnvWriteTimeout, &config.Server.WriteTimeout)
	envDuration(constants.EnvIdleTimeout, &config.Server.IdleTimeout)
	envDuration(constants.EnvShutdownTimeout, &config.Server.ShutdownTimeout)
	if val := os.Getenv(constants.EnvMaxRequestSize); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Server.MaxRequestSize = size
		}
	}

	// Service identity
	if val := os.Getenv(constants.EnvServiceName); val != "" {
		config.Service.Name = val
	}
	if val := os.Getenv(constants.EnvServiceVersion); val != "" {
		config.Service.Version = val
	}
	if val := os.Getenv(constants.EnvEnvironment); val != "" {
		config.Service.Environment = val
	}

	// Generation backend
	if val := firstEnv(constants.EnvOpenAIAPIKey, constants.EnvOpenAIAPIKeyAlt); val != "" {
		config.OpenAI.APIKey = val
	}
	if val := os.Getenv(constants.EnvOpenAIBaseURL); val != "" {
		config.OpenAI.BaseURL = val
	}
	if val := os.Getenv(constants.EnvOpenAIModel); val != "" {
		config.OpenAI.Model = val
	}
	if val := os.Getenv(constants.EnvReasoningEffort); val != "" {
		config.OpenAI.ReasoningEffort = val
	}
	envDuration(constants.EnvOpenAITimeout, &config.OpenAI.Timeout)
	if val := os.Getenv(constants.EnvOpenAIMaxRetries); val != "" {
		if retries, err := strconv.Atoi(val); err == nil {
			config.OpenAI.MaxRetries = retries
		}
	}

	// Event bus and agent
	if val := firstEnv(constants.EnvRedisURL, constants.EnvRedisURLAlt); val != "" {
		config.EventBus.RedisURL = val
	}
	if val := os.Getenv(constants.EnvInstructionsFile); val != "" {
		config.Agent.InstructionsFile = val
	}

	// Observability
	if val := os.Getenv(constants.EnvLogLevel); val != "" {
		config.Observability.Logging.Level = val
	}
	if val := os.Getenv(constants.EnvLogFormat); val != "" {
		config.Observability.Logging.Format = val
	}
	envBool(constants.EnvTracingEnabled, &config.Observability.Tracing.Enabled)

	// Hot reload
	envBool(constants.EnvHotReload, &config.HotReload.Enabled)
	envDuration(constants.EnvHotReloadDebounce, &config.HotReload.Debounce)
}

// overrideWithCLI overrides configuration with CLI flag values.
// Only explicitly set CLI flags override other configuration sources.
func overrideWithCLI(config *Config, flags *CLIFlags) {
	if flags == nil {
		return
	}

	if flags.Host != nil && flags.changed("host") {
		config.Server.Host = *flags.Host
	}
	if flags.Port != nil && flags.changed("port") {
		config.Server.Port = *flags.Port
	}
	if flags.MetricsPort != nil && flags.changed("metrics-port") {
		config.Server.MetricsPort = *flags.MetricsPort
	}
	if flags.ShutdownTimeout != nil && flags.changed("shutdown-timeout") {
		config.Server.ShutdownTimeout = *flags.ShutdownTimeout
	}
	if flags.Environment != nil && flags.changed("environment") {
		config.Service.Environment = *flags.Environment
	}

	if flags.OpenAIModel != nil && flags.changed("model") {
		config.OpenAI.Model = *flags.OpenAIModel
	}
	if flags.OpenAIBaseURL != nil && flags.changed("openai-base-url") {
		config.OpenAI.BaseURL = *flags.OpenAIBaseURL
	}
	if flags.RedisURL != nil && flags.changed("redis-url") {
		config.EventBus.RedisURL = *flags.RedisURL
	}
	if flags.InstructionsFile != nil && flags.changed("instructions-file") {
		config.Agent.InstructionsFile = *flags.InstructionsFile
	}
	if flags.LogLevel != nil && flags.changed("log-level") {
		config.Observability.Logging.Level = *flags.LogLevel
	}
	if flags.TracingEnabled != nil && flags.changed("tracing-enabled") {
		config.Observability.Tracing.Enabled = *flags.TracingEnabled
	}

	// Security flags
	if flags.AuthEnabled != nil && flags.changed("auth-enabled") {
		config.Security.Auth.Enabled = *flags.AuthEnabled
	}
	if flags.RateLimitEnabled != nil && flags.changed("rate-limit-enabled") {
		config.Security.RateLimit.Enabled = *flags.RateLimitEnabled
	}
	if flags.RateLimitRPS != nil && flags.changed("rate-limit-rps") {
		if config.Security.RateLimit.Global == nil {
			config.Security.RateLimit.Global = &RateLimit{
				RequestsPerSecond: *flags.RateLimitRPS,
				BurstSize:         *flags.RateLimitRPS * 2,
				WindowSize:        time.Minute,
			}
		} else {
			config.Security.RateLimit.Global.RequestsPerSecond = *flags.RateLimitRPS
		}
	}

	if flags.HotReload != nil && flags.changed("hot-reload") {
		config.HotReload.Enabled = *flags.HotReload
	}
}

// validateFilePath checks if the file path is safe to read
func validateFilePath(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal attempts")
	}

	return nil
}
