// Package core provides the HTTP chassis of the snow density service. It
// creates a chi router usable both as a standard HTTP server and behind the
// Lambda adapter, and applies cross-cutting concerns (recovery, request IDs,
// logging, metrics) before requests reach the prediction handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"snowdensity/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	// RecordRequest records latency and count for one request. endpoint is
	// the matched route pattern.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies of the HTTP surface.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics MetricsCollector

	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe
	// MetricsHandler serves GET /metrics when non-nil.
	MetricsHandler http.Handler
	// V1RouteRegistrars mount handler routes under /v1. They are supplied
	// by the entry point so core does not import handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer validates its inputs and prepares an empty router. Routes are
// mounted by MountRoutes once registrars have been added.
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

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
