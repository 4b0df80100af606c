package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Headers   SecurityHeaders `json:"headers" yaml:"headers"`
	CORS      CORSConfig      `json:"cors" yaml:"cors"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	HeaderName     string         `json:"header_name" yaml:"header_name"`
	QueryParamName string         `json:"query_param_name" yaml:"query_param_name"`
	Keys           []APIKeyConfig `json:"keys" yaml:"keys"`
	RateLimit      *RateLimit     `json:"rate_limit" yaml:"rate_limit"`
}

// APIKeyConfig represents an API key configuration
type APIKeyConfig struct {
	Key       string            `json:"key" yaml:"key"`
	Name      string            `json:"name" yaml:"name"`
	Enabled   bool              `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Metadata  map[string]string `json:"metadata" yaml:"metadata"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool                  `json:"enabled" yaml:"enabled"`
	Strategy        string                `json:"strategy" yaml:"strategy"` // "api_key", "ip", "both"
	Global          *RateLimit            `json:"global" yaml:"global"`
	ByAPIKey        map[string]*RateLimit `json:"by_api_key" yaml:"by_api_key"`
	ByIP            *RateLimit            `json:"by_ip" yaml:"by_ip"`
	CleanupInterval time.Duration         `json:"cleanup_interval" yaml:"cleanup_interval"`
	MaxCacheSize    int                   `json:"max_cache_size" yaml:"max_cache_size"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are honored. Empty means the peer address is used.
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
}

// ParseTrustedProxies converts IPs and CIDRs into prefixes
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// RateLimit contains rate limit settings for a specific entity
type RateLimit struct {
	RequestsPerSecond int           `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	WindowSize        time.Duration `json:"window_size" yaml:"window_size"`
}

// DefaultRateLimit returns default rate limit configuration for a specific entity
func DefaultRateLimit() *RateLimit {
	return &RateLimit{
		RequestsPerSecond: 60,
		BurstSize:         120,
		WindowSize:        time.Minute,
	}
}

// SecurityHeaders contains security headers configuration
type SecurityHeaders struct {
	Enabled               bool     `json:"enabled" yaml:"enabled"`
	HSTSMaxAge            int      `json:"hsts_max_age" yaml:"hsts_max_age"`
	ContentSecurityPolicy string   `json:"content_security_policy" yaml:"content_security_policy"`
	AllowedHosts          []string `json:"allowed_hosts" yaml:"allowed_hosts"`
}

// CORSConfig contains CORS configuration
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `json:"max_age" yaml:"max_age"`
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Auth:      DefaultAuthConfig(),
		RateLimit: DefaultRateLimitConfig(),
		Headers:   DefaultSecurityHeaders(),
		CORS:      DefaultCORSConfig(),
	}
}

// DefaultAuthConfig returns default authentication configuration
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:        false,
		HeaderName:     constants.HeaderXAPIKey,
		QueryParamName: "api_key",
		Keys:           []APIKeyConfig{},
		RateLimit:      nil,
	}
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:  false,
		Strategy: constants.RateLimitStrategyIP,
		Global: &RateLimit{
			RequestsPerSecond: 100,
			BurstSize:         200,
			WindowSize:        time.Minute,
		},
		ByAPIKey: make(map[string]*RateLimit),
		ByIP: &RateLimit{
			RequestsPerSecond: 60,
			BurstSize:         120,
			WindowSize:        time.Minute,
		},
		CleanupInterval: 5 * time.Minute,
		MaxCacheSize:    10000,
	}
}

// DefaultSecurityHeaders returns default security headers
func DefaultSecurityHeaders() SecurityHeaders {
	return SecurityHeaders{
		Enabled:               true,
		HSTSMaxAge:            31536000, // 1 year
		ContentSecurityPolicy: "default-src 'none'",
		AllowedHosts:          []string{},
	}
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{constants.MethodGET, constants.MethodPOST, constants.MethodOPTIONS},
		AllowedHeaders:   []string{constants.HeaderContentType, constants.HeaderAuthorization, constants.HeaderXAPIKey, constants.HeaderXRequestID},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	}
}

// Validate validates the security configuration
func (s *SecurityConfig) Validate() error {
	var errs []error

	if err := s.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth config validation failed: %w", err))
	}
	if err := s.RateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rate limit config validation failed: %w", err))
	}
	if err := s.Headers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("security headers config validation failed: %w", err))
	}
	if err := s.CORS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CORS config validation failed: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate validates the authentication configuration
func (a *AuthConfig) Validate() error {
	var errs []error

	if a.Enabled {
		if a.HeaderName == "" && a.QueryParamName == "" {
			errs = append(errs, errors.New("either header_name or query_param_name must be set"))
		}
	}

	if a.RateLimit != nil {
		if err := a.RateLimit.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("auth rate limit validation failed: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate validates the rate limit configuration
func (r *RateLimitConfig) Validate() error {
	var errs []error

	if r.Enabled {
		switch r.Strategy {
		case constants.RateLimitStrategyIP, constants.RateLimitStrategyAPIKey, constants.RateLimitStrategyBoth:
		default:
			errs = append(errs, errors.New("strategy must be one of: ip, api_key, both"))
		}

		if r.Global != nil {
			if err := r.Global.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("global rate limit validation failed: %w", err))
			}
		}

		if r.ByIP != nil {
			if err := r.ByIP.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("by_ip rate limit validation failed: %w", err))
			}
		}

		if _, err := ParseTrustedProxies(r.TrustedProxies); err != nil {
			errs = append(errs, err)
		}

		for key, limit := range r.ByAPIKey {
			if limit != nil {
				if err := limit.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("by_api_key[%s] rate limit validation failed: %w", key, err))
				}
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate validates the CORS configuration
func (c *CORSConfig) Validate() error {
	if c.Enabled {
		if len(c.AllowedOrigins) == 0 {
			return fmt.Errorf("allowed_origins must not be empty")
		}
		if len(c.AllowedMethods) == 0 {
			return fmt.Errorf("allowed_methods must not be empty")
		}
	}
	return nil
}

// Validate validates the security headers configuration
func (h *SecurityHeaders) Validate() error {
	if h.Enabled {
		if h.HSTSMaxAge < 0 {
			return fmt.Errorf("hsts_max_age must be non-negative")
		}
	}
	return nil
}

// Validate validates the rate limit configuration for a specific entity
func (l *RateLimit) Validate() error {
	if l.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if l.BurstSize <= 0 {
		return fmt.Errorf("burst_size must be positive")
	}
	if l.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive")
	}
	return nil
}
