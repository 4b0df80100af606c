package server

import (
	"net/http"

	"github.com/leslieo2/agent-summarizer/internal/server/middleware"
)

// applyMiddleware wraps handler with the full chain. The last wrapper applied
// runs first.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	handler = s.rateLimiter.Middleware(handler)
	handler = s.authManager.Middleware(handler)

	handler = middleware.RequestSizeLimitMiddleware(s.config.Server.MaxRequestSize)(handler)

	if s.config.Security.CORS.Enabled {
		handler = middleware.NewCORSMiddleware(s.config.Security.CORS).Handler(handler)
	}
	handler = middleware.SecurityHeadersMiddleware(s.config.Security.Headers)(handler)

	handler = middleware.RecoveryMiddleware(s.logger.Logger)(handler)
	handler = middleware.MetricsMiddleware(s.metrics, s.routeLabel)(handler)
	handler = middleware.LoggingMiddleware(s.logger.Logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	return handler
}
