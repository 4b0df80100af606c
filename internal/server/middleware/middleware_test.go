package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		cfg             config.CORSConfig
		method          string
		origin          string
		preflight       bool
		wantStatus      int
		wantAllowOrigin string
	}{
		{
			name:            "wildcard origin",
			cfg:             config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}},
			method:          http.MethodGet,
			origin:          "https://a.example.com",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "*",
		},
		{
			name:            "wildcard with credentials echoes origin",
			cfg:             config.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
			method:          http.MethodGet,
			origin:          "https://a.example.com",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://a.example.com",
		},
		{
			name:            "disallowed origin passes through without headers",
			cfg:             config.CORSConfig{AllowedOrigins: []string{"https://b.example.com"}},
			method:          http.MethodGet,
			origin:          "https://a.example.com",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "",
		},
		{
			name:            "allowed preflight",
			cfg:             config.CORSConfig{AllowedOrigins: []string{"https://a.example.com"}, MaxAge: 60},
			method:          http.MethodOptions,
			origin:          "https://a.example.com",
			preflight:       true,
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "https://a.example.com",
		},
		{
			name:       "disallowed preflight",
			cfg:        config.CORSConfig{AllowedOrigins: []string{"https://b.example.com"}},
			method:     http.MethodOptions,
			origin:     "https://a.example.com",
			preflight:  true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no origin",
			cfg:        config.CORSConfig{AllowedOrigins: []string{"*"}},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCORSMiddleware(tt.cfg).Handler(okHandler)

			req := httptest.NewRequest(tt.method, "/agent/summarize", nil)
			if tt.origin != "" {
				req.Header.Set(constants.HeaderOrigin, tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllowOrigin, rec.Header().Get(constants.HeaderAccessControlAllowOrigin))
		})
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			WriteError(w, http.StatusRequestEntityTooLarge, constants.ErrorCodeRequestTooLarge, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestSizeLimitMiddleware(8)(readAll)

	t.Run("within limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("declared length too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too large")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, ErrorResponse{
			Error:   constants.ErrorCodeRequestTooLarge,
			Message: "Request body too large, max size: 8 bytes",
			Code:    constants.ErrorCodeRequestTooLarge,
		}, body)
	})

	t.Run("unknown length capped while reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("this body is too large")))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	cfg := config.SecurityHeaders{
		Enabled:               true,
		HSTSMaxAge:            60,
		ContentSecurityPolicy: "default-src 'none'",
		AllowedHosts:          []string{"api.example.com"},
	}
	handler := SecurityHeadersMiddleware(cfg)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com:8002/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'", rec.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req = httptest.NewRequest(http.MethodGet, "http://evil.example.com/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	disabled := SecurityHeadersMiddleware(config.SecurityHeaders{AllowedHosts: []string{"x"}})(okHandler)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://evil.example.com/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(constants.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderXRequestID, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(constants.HeaderXRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderXRequestID, strings.Repeat("x", 200))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36)
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agent/summarize", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, constants.ErrorCodeInternal, body.Code)

	entries := logs.FilterMessage("Panic while serving request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].ContextMap()["panic"])
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(constants.HeaderXRequestID, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/health", first["path"])
	assert.Equal(t, int64(200), first["status_code"])
	assert.Equal(t, int64(5), first["response_size"])
	assert.Equal(t, "req-1", first["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(404), entries[1].ContextMap()["status_code"])
}

type recordedRequest struct {
	method, endpoint string
	status           int
	responseSize     int64
}

type fakeRecorder struct {
	requests []recordedRequest
	active   int
	peak     int
}

func (f *fakeRecorder) RecordRequest(method, endpoint string, statusCode int, _ time.Duration, _, responseSize int64) {
	f.requests = append(f.requests, recordedRequest{method, endpoint, statusCode, responseSize})
}

func (f *fakeRecorder) IncActiveConnections() {
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
}

func (f *fakeRecorder) DecActiveConnections() { f.active-- }

func TestMetricsMiddleware(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := MetricsMiddleware(recorder, func(*http.Request) string { return "route" })(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("done"))
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}")))

	assert.Equal(t, []recordedRequest{{"POST", "route", http.StatusAccepted, 4}}, recorder.requests)
	assert.Equal(t, 0, recorder.active)
	assert.Equal(t, 1, recorder.peak)
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	_, _ = rw.Write([]byte("abc"))

	assert.Equal(t, http.StatusCreated, rw.StatusCode())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(3), rw.BytesWritten())
	assert.Same(t, rw, NewResponseWriter(rw))
}
