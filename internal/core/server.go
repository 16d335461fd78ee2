// Package core is the HTTP chassis shared by the payhook binaries: a chi
// router with recovery, request IDs, structured request logging and
// metrics, plus the uniform response envelope used by every result path.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payhook/internal/config"
)

// MetricsCollector records per-request telemetry. endpoint is the matched
// route pattern, never the raw path.
type MetricsCollector interface {
	RecordRequest(method, endpoint string, status int, duration time.Duration)
}

// RouteRegistrar mounts a component's routes on the router.
type RouteRegistrar func(r chi.Router)

// Server holds the router and its cross-cutting dependencies.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// MetricsHandler, when set, is served at GET /metrics.
	MetricsHandler http.Handler

	// Registrars are applied by MountRoutes after global middleware.
	Registrars []RouteRegistrar

	router *chi.Mux
}

// NewServer validates dependencies and prepares an empty router. Callers
// fill in optional fields and then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi mux for tests and custom registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe runs an http.Server until ctx is cancelled, then drains
// in-flight requests within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.Config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.Logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.Config.Server.ShutdownTimeout > 0 {
		return s.Config.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
