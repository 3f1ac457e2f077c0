// Package server runs the Lucid web surface: the browser form, the JSON
// generate API, health and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/metrics"
	"github.com/teilomillet/lucid/server/handlers"
	"github.com/teilomillet/lucid/server/middleware"
	"github.com/teilomillet/lucid/wrapper"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	watcher    config.Watcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	source     *wrapperSource
}

// Option configures a Server.
type Option func(*Server)

// WithEnvLookup fills missing credentials of every loaded configuration
// from lookup, usually os.LookupEnv.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(s *Server) { s.source.lookup = lookup }
}

// NewServer watches the configuration file at configPath and builds a
// server from it.
func NewServer(configPath string, logger *zap.Logger, opts ...Option) (*Server, error) {
	watcher, err := config.NewConfigWatcher(configPath, logger)
	if err != nil {
		return nil, err
	}
	return NewServerWithConfig(watcher, logger, opts...)
}

// NewServerWithConfig builds a server from a configuration watcher. The
// listen address, timeouts and rate limit come from the configuration at
// construction time; everything else follows reloads.
func NewServerWithConfig(watcher config.Watcher, logger *zap.Logger, opts ...Option) (*Server, error) {
	cfg := watcher.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no configuration available")
	}

	m := metrics.NewMetrics()
	s := &Server{
		watcher: watcher,
		logger:  logger,
		metrics: m,
		source: &wrapperSource{
			watcher: watcher,
			options: []wrapper.Option{wrapper.WithLogger(logger), wrapper.WithMetrics(m)},
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.source.Current(); err != nil {
		return nil, fmt.Errorf("build wrapper: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.routes(cfg),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return s, nil
}

func (s *Server) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.Logging(s.logger))
	r.Use(errors.ErrorHandler(s.logger))
	r.Use(middleware.CORS)
	r.Use(middleware.PrometheusMetrics(s.metrics))

	form := handlers.NewFormHandler(s.source, s.logger)
	generate := handlers.NewGenerateHandler(s.source, s.logger)

	r.Get("/", form.Show)
	r.Get("/health", handlers.Health(s.source))
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Server.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(cfg.Server.RateLimit, s.metrics).Handler)
		}
		r.Post("/ask", form.Ask)
		r.Method(http.MethodPost, "/v1/generate", generate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, errors.NewError(errors.NotFoundError, "Route not found", http.StatusNotFound,
			middleware.GetRequestID(r.Context()), map[string]interface{}{"path": r.URL.Path}, nil))
	})

	return r
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics returns the collectors of this server.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// the configured shutdown timeout and closes the watcher.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	updates := s.watcher.Subscribe()
	for {
		select {
		case cfg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.logReload(cfg)

		case <-ctx.Done():
			return s.shutdown()

		case err := <-errChan:
			s.watcher.Close()
			return err
		}
	}
}

func (s *Server) logReload(cfg *config.Config) {
	s.logger.Info("Configuration change applied",
		zap.String("model", cfg.Model),
		zap.String("backend", cfg.Backend.Kind),
		zap.Bool("dev_mode", cfg.DevMode),
	)
	if addr := fmt.Sprintf(":%d", cfg.Server.Port); addr != s.httpServer.Addr {
		s.logger.Warn("Port change requires a restart",
			zap.String("current", s.httpServer.Addr),
			zap.String("configured", addr),
		)
	}
}

func (s *Server) shutdown() error {
	timeout := s.watcher.GetCurrentConfig().Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server", zap.Duration("timeout", timeout))
	defer s.watcher.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}
