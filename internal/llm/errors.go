package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingAPIKey is returned when no credential is configured
	ErrMissingAPIKey = errors.New("openai api key not configured")
	// ErrUpstream wraps every failure of the generation API
	ErrUpstream = errors.New("generation backend error")
	// ErrEmptyCompletion is returned when the API answers without content
	ErrEmptyCompletion = errors.New("empty completion")
)

// APIError is a non-2xx answer from the generation API
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("openai: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error {
	return ErrUpstream
}

// Retryable reports whether the request may succeed if sent again
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// isRetryable classifies an attempt error. Network failures are retried,
// client errors other than 429 are not.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return err != nil
}

// countsAgainstBreaker decides whether err says anything about upstream health
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
