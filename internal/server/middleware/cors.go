package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// CORSMiddleware answers preflight requests and decorates allowed origins
type CORSMiddleware struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg config.CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
}

func (c *CORSMiddleware) allowedOrigin(origin string) (string, bool) {
	for _, allowed := range c.AllowedOrigins {
		if allowed == origin {
			return origin, true
		}
		if allowed == "*" {
			// Credentials cannot be combined with a literal wildcard.
			if c.AllowCredentials {
				return origin, true
			}
			return "*", true
		}
	}
	return "", false
}

// Handler returns the CORS middleware handler
func (c *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(constants.HeaderOrigin)
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowOrigin, allowed := c.allowedOrigin(origin)
		if allowed {
			h := w.Header()
			h.Set(constants.HeaderAccessControlAllowOrigin, allowOrigin)
			h.Add("Vary", constants.HeaderOrigin)
			if len(c.AllowedMethods) > 0 {
				h.Set(constants.HeaderAccessControlAllowMethods, strings.Join(c.AllowedMethods, ", "))
			}
			if len(c.AllowedHeaders) > 0 {
				h.Set(constants.HeaderAccessControlAllowHeaders, strings.Join(c.AllowedHeaders, ", "))
			}
			if c.AllowCredentials {
				h.Set(constants.HeaderAccessControlAllowCredentials, "true")
			}
			if c.MaxAge > 0 {
				h.Set(constants.HeaderAccessControlMaxAge, strconv.Itoa(c.MaxAge))
			}
		}

		if r.Method == constants.MethodOPTIONS && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
