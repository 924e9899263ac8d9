// Package server owns the HTTP listener for the operational surface:
// health, metrics, and the pipeline trigger endpoints. Routing lives
// with the handlers; this package only manages the listener lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/briefmill/briefmill/internal/config"
	"log/slog"
)

// Server wraps the http.Server so startup and shutdown follow the same
// pattern as the pipelines.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	http   *http.Server
}

// New wraps handler in an http.Server with the configured port and
// timeouts.
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		http:   srv,
	}
}

// Start serves until the listener fails or Shutdown is called. A
// closed-server return is not an error.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits out in-flight
// requests, bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
