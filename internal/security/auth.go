package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
)

var (
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrAPIKeyDisabled = errors.New("API key is disabled")
	ErrAPIKeyExpired  = errors.New("API key has expired")
	ErrAPIKeyNotFound = errors.New("API key not found")
)

type APIKey struct {
	Key       string            `json:"key" yaml:"key"`
	Name      string            `json:"name" yaml:"name"`
	Enabled   bool              `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	LastUsed  *time.Time        `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AuthManager validates API keys for the summarize endpoints
type AuthManager struct {
	mu     sync.RWMutex
	keys   map[string]*APIKey
	config config.AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthManager(cfg config.AuthConfig, logger *zap.Logger) *AuthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	am := &AuthManager{
		keys:   make(map[string]*APIKey, len(cfg.Keys)),
		config: cfg,
		logger: logger,
		now:    time.Now,
	}

	for _, key := range cfg.Keys {
		am.keys[key.Key] = &APIKey{
			Key:       key.Key,
			Name:      key.Name,
			Enabled:   key.Enabled,
			CreatedAt: key.CreatedAt,
			ExpiresAt: key.ExpiresAt,
			Metadata:  key.Metadata,
		}
	}

	return am
}

func (am *AuthManager) GenerateAPIKey(name string) (*APIKey, error) {
	key, err := generateRandomKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	apiKey := &APIKey{
		Key:       key,
		Name:      name,
		Enabled:   true,
		CreatedAt: am.now(),
		Metadata:  make(map[string]string),
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	am.keys[key] = apiKey
	return apiKey, nil
}

// ValidateAPIKey returns the matching key. With auth disabled it returns nil, nil.
func (am *AuthManager) ValidateAPIKey(providedKey string) (*APIKey, error) {
	if !am.config.Enabled {
		return nil, nil
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	// Compare against every key so timing does not leak which prefix matched.
	var found *APIKey
	for _, apiKey := range am.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey.Key), []byte(providedKey)) == 1 {
			found = apiKey
		}
	}

	if found == nil {
		return nil, ErrInvalidAPIKey
	}
	if !found.Enabled {
		return nil, ErrAPIKeyDisabled
	}

	now := am.now()
	if found.ExpiresAt != nil && now.After(*found.ExpiresAt) {
		return nil, ErrAPIKeyExpired
	}

	found.LastUsed = &now
	snapshot := *found
	return &snapshot, nil
}

func (am *AuthManager) RevokeAPIKey(key string) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	if apiKey, exists := am.keys[key]; exists {
		apiKey.Enabled = false
		return nil
	}

	return ErrAPIKeyNotFound
}

func (am *AuthManager) ListAPIKeys() []*APIKey {
	am.mu.RLock()
	defer am.mu.RUnlock()

	keys := make([]*APIKey, 0, len(am.keys))
	for _, key := range am.keys {
		copied := *key
		keys = append(keys, &copied)
	}
	return keys
}

// ExtractAPIKey reads the key from the configured header, the query string,
// or a bearer token, in that order
func (am *AuthManager) ExtractAPIKey(r *http.Request) string {
	if am.config.HeaderName != "" {
		if headerKey := r.Header.Get(am.config.HeaderName); headerKey != "" {
			return strings.TrimSpace(headerKey)
		}
	}

	if am.config.QueryParamName != "" {
		if queryKey := r.URL.Query().Get(am.config.QueryParamName); queryKey != "" {
			return strings.TrimSpace(queryKey)
		}
	}

	authHeader := r.Header.Get(constants.HeaderAuthorization)
	if strings.HasPrefix(authHeader, constants.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, constants.BearerPrefix))
	}

	return ""
}

func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// Middleware returns an HTTP middleware for API key authentication
func (am *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !am.config.Enabled || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := am.ExtractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, constants.ErrorCodeUnauthorized,
				"API key is required to access this endpoint")
			return
		}

		apiKey, err := am.ValidateAPIKey(key)
		if err != nil {
			code := constants.ErrorCodeInvalidAPIKey
			switch {
			case errors.Is(err, ErrAPIKeyExpired):
				code = constants.ErrorCodeAPIKeyExpired
			case errors.Is(err, ErrAPIKeyDisabled):
				code = constants.ErrorCodeAPIKeyDisabled
			}
			am.logger.Warn("Rejected API key",
				zap.String("path", r.URL.Path),
				zap.String("code", code),
			)
			writeError(w, http.StatusUnauthorized, code, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), apiKey)))
	})
}

type contextKey string

const apiKeyContextKey contextKey = "api_key"

func WithAPIKey(ctx context.Context, key *APIKey) context.Context {
	return context.WithValue(ctx, apiKeyContextKey, key)
}

func APIKeyFromContext(ctx context.Context) (*APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*APIKey)
	return key, ok
}
