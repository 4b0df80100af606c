package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives one observation per request
type RequestRecorder interface {
	RecordRequest(method, endpoint string, statusCode int, duration time.Duration, requestSize, responseSize int64)
	IncActiveConnections()
	DecActiveConnections()
}

// MetricsMiddleware records request counts, latency and sizes. routeOf maps
// a request to a bounded label.
func MetricsMiddleware(recorder RequestRecorder, routeOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			wrapped := NewResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}
			recorder.RecordRequest(r.Method, routeOf(r), wrapped.StatusCode(), time.Since(start), requestSize, wrapped.BytesWritten())
		})
	}
}
