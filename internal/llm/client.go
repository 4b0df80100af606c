// Package llm is a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/circuitbreaker"
	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/observability"
)

const (
	maxResponseBodySize = 4 * 1024 * 1024
	maxLogBodySize      = 200

	operationChatCompletion = "chat_completion"
	operationListModels     = "list_models"
)

// MetricsRecorder counts calls to the generation API
type MetricsRecorder interface {
	RecordLLMRequest(operation string, success bool)
}

// Option configures a Client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracer(t *observability.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithBreaker replaces the default circuit breaker
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// Client talks to the generation API. It is safe for concurrent use.
type Client struct {
	apiKey        string
	baseURL       string
	healthTimeout time.Duration
	retry         RetryConfig

	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
	metrics    MetricsRecorder
	tracer     *observability.Tracer
}

// NewClient builds a client from the generation backend settings. A missing
// API key is accepted; calls then fail with ErrMissingAPIKey.
func NewClient(cfg config.OpenAIConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		healthTimeout: cfg.HealthTimeout,
		retry: RetryConfig{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   cfg.RetryBaseDelay,
		}.normalized(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
		tracer:     observability.NewNopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil {
		logger := c.logger
		c.breaker = circuitbreaker.New(circuitbreaker.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			IsFailure:   countsAgainstBreaker,
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("Generation backend circuit changed state",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = 5 * time.Second
	}
	return c
}

// HasCredential reports whether an API key is configured
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// BreakerState exposes the circuit state for diagnostics
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// CreateChatCompletion sends req, retrying transient failures, behind the circuit breaker
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.HasCredential() {
		return nil, ErrMissingAPIKey
	}

	ctx, span := c.tracer.StartSpan(ctx, "llm.chat_completion",
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat completion request: %w", err)
	}

	var resp ChatCompletionResponse
	err = c.breaker.Call(func() error {
		raw, callErr := c.doWithRetry(ctx, http.MethodPost, "/chat/completions", body)
		if callErr != nil {
			return callErr
		}
		if decodeErr := json.Unmarshal(raw, &resp); decodeErr != nil {
			return fmt.Errorf("%w: failed to decode chat completion: %w", ErrUpstream, decodeErr)
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if err == nil && resp.FirstMessage() == "" {
		err = fmt.Errorf("%w: %w", ErrUpstream, ErrEmptyCompletion)
	}

	c.record(operationChatCompletion, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	return &resp, nil
}

// Ping performs a single authenticated GET /models. It bypasses the retry
// loop and the circuit breaker so health checks reflect the current state.
func (c *Client) Ping(ctx context.Context) error {
	if !c.HasCredential() {
		return ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	_, err := c.do(ctx, http.MethodGet, "/models", nil)
	c.record(operationListModels, err)
	return err
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.retry.Backoff(attempt - 1)
			c.logger.Warn("Retrying generation request after transient error",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.retry.MaxAttempts),
				zap.Int64("backoff_ms", backoff.Milliseconds()),
				zap.Error(lastErr),
			)
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, fmt.Errorf("%w: retry backoff interrupted: %w", ErrUpstream, err)
			}
		}

		raw, err := c.do(ctx, method, path, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// do sends one request and returns the body of a 2xx answer
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request for %s: %w", ErrUpstream, url, err)
	}
	httpReq.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+c.apiKey)
	if body != nil {
		httpReq.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUpstream, method, path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close response body", zap.Error(closeErr))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded apiErrorBody
		if json.Unmarshal(raw, &decoded) == nil {
			apiErr.Message = decoded.Error.Message
			apiErr.Type = decoded.Error.Type
		}
		c.logger.Warn("Generation backend returned error status",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", truncateBody(raw)),
		)
		return nil, apiErr
	}

	return raw, nil
}

func (c *Client) record(operation string, err error) {
	if c.metrics != nil {
		c.metrics.RecordLLMRequest(operation, err == nil)
	}
}

// truncateBody keeps error bodies short in logs
func truncateBody(body []byte) string {
	if len(body) <= maxLogBodySize {
		return string(body)
	}
	return string(body[:maxLogBodySize]) + "... [truncated]"
}
