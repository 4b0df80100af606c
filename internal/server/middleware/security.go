package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// SecurityHeadersMiddleware sets hardening headers and enforces allowed hosts
func SecurityHeadersMiddleware(cfg config.SecurityHeaders) func(http.Handler) http.Handler {
	allowedHosts := make(map[string]struct{}, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		allowedHosts[h] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			if cfg.HSTSMaxAge > 0 && r.TLS != nil {
				h.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge))
			}
			if cfg.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}

			if len(allowedHosts) > 0 {
				host := r.Host
				if stripped, _, err := net.SplitHostPort(host); err == nil {
					host = stripped
				}
				_, okHost := allowedHosts[host]
				_, okHostPort := allowedHosts[r.Host]
				if !okHost && !okHostPort {
					WriteError(w, http.StatusForbidden, constants.ErrorCodeHostNotAllowed, "Host not allowed")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
