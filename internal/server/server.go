// Package server exposes the summarizer and its readiness report over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/app"
	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/observability"
	"github.com/leslieo2/agent-summarizer/internal/security"
)

type Server struct {
	container *app.Container
	config    *config.Config

	// Security
	authManager *security.AuthManager
	rateLimiter *security.RateLimiter

	// Observability
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	handler http.Handler

	mu            sync.Mutex
	server        *http.Server
	metricsServer *http.Server
}

// New builds the HTTP surface for c. The container stays owned by the caller.
func New(c *app.Container) *Server {
	cfg := c.Config
	logger := c.Logger.Named("server")

	s := &Server{
		container:   c,
		config:      cfg,
		authManager: security.NewAuthManager(cfg.Security.Auth, logger.Named("auth").Logger),
		rateLimiter: security.NewRateLimiter(cfg.Security.RateLimit, logger.Named("rate_limit").Logger),
		logger:      logger,
		metrics:     c.Metrics,
		tracer:      c.Tracer,
	}
	s.handler = s.applyMiddleware(s.routes())
	return s
}

// Handler returns the fully wrapped application handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range s.routeTable() {
		mux.HandleFunc(route.pattern(), route.handler)
	}
	return mux
}

// Run serves until ctx is cancelled or a listener fails, then shuts both
// servers down within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	mainLn, err := net.Listen("tcp", s.config.GetServerAddress())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.GetServerAddress(), err)
	}

	var metricsLn net.Listener
	if s.config.Observability.Metrics.Enabled {
		metricsLn, err = net.Listen("tcp", s.config.GetMetricsAddress())
		if err != nil {
			_ = mainLn.Close()
			return fmt.Errorf("listen on %s: %w", s.config.GetMetricsAddress(), err)
		}
	}

	return s.Serve(ctx, mainLn, metricsLn)
}

// Serve is Run on caller-provided listeners. metricsLn may be nil.
func (s *Server) Serve(ctx context.Context, mainLn, metricsLn net.Listener) error {
	defer s.rateLimiter.Close()

	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}
	if s.config.TLS.Enabled {
		s.server.TLSConfig = s.config.TLS.ServerTLSConfig()
	}
	if metricsLn != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(s.config.Observability.Metrics.Path, s.metrics.Handler())
		s.metricsServer = &http.Server{
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	mainServer, metricsServer := s.server, s.metricsServer
	s.mu.Unlock()

	errCh := make(chan error, 2)

	if metricsServer != nil {
		s.logger.Info("Starting metrics server",
			zap.String("addr", metricsLn.Addr().String()),
			zap.String("path", s.config.Observability.Metrics.Path),
		)
		go func() {
			if err := metricsServer.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	s.logger.Info("Starting server",
		zap.String("addr", mainLn.Addr().String()),
		zap.Bool("tls", s.config.TLS.Enabled),
		zap.Bool("agent_configured", s.container.AgentReady()),
		zap.Bool("event_bus_configured", s.container.EventBus != nil),
	)
	go func() {
		var err error
		if s.config.TLS.Enabled {
			err = mainServer.ServeTLS(mainLn, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = mainServer.Serve(mainLn)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("main server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
	case runErr = <-errCh:
		s.logger.Error("Server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(runErr, s.shutdown(shutdownCtx))
}

// shutdown stops the main and metrics servers in parallel
func (s *Server) shutdown(ctx context.Context) error {
	s.mu.Lock()
	servers := map[string]*http.Server{"main": s.server, "metrics": s.metricsServer}
	s.mu.Unlock()

	s.metrics.SetHealthStatus(false)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, srv := range servers {
		if srv == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("Shutting down server", zap.String("server", name))
			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Error("Failed to shutdown server", zap.String("server", name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s server shutdown: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}
