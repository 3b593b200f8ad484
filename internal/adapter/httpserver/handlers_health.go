package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/shiritori/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named probe. Checks marked Startup gate the startup probe;
// every check gates readiness.
type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Startup bool
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup passes once the channel store is reachable, even while the
// gateway is still identifying.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.respondHealth(c, s.runChecks(ctx, true))
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.respondHealth(c, s.runChecks(ctx, false))
}

// runChecks runs every selected check and records each outcome.
func (s *Server) runChecks(ctx context.Context, startupOnly bool) healthReport {
	report := healthReport{Status: "ready", Checks: make(map[string]string)}
	for _, hc := range s.healthChecks {
		if startupOnly && !hc.Startup {
			continue
		}
		if err := hc.Check(ctx); err != nil {
			report.Status = "unhealthy"
			report.Checks[hc.Name] = err.Error()
			continue
		}
		report.Checks[hc.Name] = "ok"
	}
	return report
}

func (s *Server) respondHealth(c echo.Context, report healthReport) error {
	status := http.StatusOK
	if report.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, report); err != nil {
		return fmt.Errorf("failed to send health response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
