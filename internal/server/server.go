package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/config"
	"github.com/haskel/cplxfox/internal/evaluator"
	"github.com/haskel/cplxfox/internal/monitor"
	"github.com/haskel/cplxfox/internal/server/middleware"
)

// loadedModels is one loaded artifact. It is replaced as a whole on reload.
type loadedModels struct {
	eval        *evaluator.Evaluator
	fingerprint string
	loadedAt    time.Time
}

type Server struct {
	httpServer *http.Server
	store      *artifact.Store
	aggregator *monitor.Aggregator
	current    atomic.Pointer[loadedModels]
	config     *config.Config
	logger     *slog.Logger
	version    string
	authConfig *middleware.AuthConfig
	startedAt  time.Time
}

// New loads the artifact from store and prepares the HTTP server.
// The aggregator may be nil, in which case /status omits host data.
func New(cfg *config.Config, store *artifact.Store, agg *monitor.Aggregator, logger *slog.Logger, version string) (*Server, error) {
	s := &Server{
		store:      store,
		aggregator: agg,
		config:     cfg,
		logger:     logger,
		version:    version,
		startedAt:  time.Now(),
		authConfig: &middleware.AuthConfig{
			Enabled:  cfg.Auth.Enabled,
			User:     cfg.Auth.User,
			Password: cfg.Auth.Password,
		},
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	mux := s.setupRoutes()

	handler := middleware.Chain(
		mux,
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.SecurityHeaders(),
		middleware.RateLimit(&middleware.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
			PerClient:         cfg.Server.RateLimit.PerClient,
		}),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
		middleware.Auth(s.authConfig, "/health"),
	)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Reload reads the artifact again and swaps it in. On failure the
// previously loaded models keep serving.
func (s *Server) Reload() error {
	a, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load artifact: %w", err)
	}

	eval, err := evaluator.New(a)
	if err != nil {
		return fmt.Errorf("failed to compile artifact: %w", err)
	}

	fingerprint, err := artifact.Fingerprint(a)
	if err != nil {
		return err
	}

	s.current.Store(&loadedModels{
		eval:        eval,
		fingerprint: fingerprint,
		loadedAt:    time.Now(),
	})

	s.logger.Info("models loaded",
		"path", s.store.Path(),
		"tasks", len(a),
		"fingerprint", fingerprint,
	)
	return nil
}

// ReloadConfig applies settings that can change at runtime.
// Host, port and middleware limits require a restart.
func (s *Server) ReloadConfig(cfg *config.Config) {
	s.authConfig.Update(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password)
	s.config = cfg

	s.logger.Info("configuration reloaded",
		"auth_enabled", cfg.Auth.Enabled,
	)
}

func (s *Server) loaded() *loadedModels {
	return s.current.Load()
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("server starting",
		"addr", s.httpServer.Addr,
		"version", s.version,
	)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
