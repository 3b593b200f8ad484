// Package httpserver exposes the bot's operational endpoints: health probes,
// build version and Prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Server struct {
	echo           *echo.Echo
	port           string
	metricsHandler http.Handler
	healthChecks   []HealthCheck
	startTime      time.Time
}

// NewServer builds the ops server. metricsHandler may be nil to omit /metrics.
func NewServer(port string, metricsHandler http.Handler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		port:           port,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start serves until Shutdown is called. A graceful shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("Starting ops server", "port", s.port)
	if err := s.echo.Start(net.JoinHostPort("", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the full middleware chain without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
