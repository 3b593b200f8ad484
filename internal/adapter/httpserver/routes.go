package httpserver

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(requestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(ErrorHandlingMiddleware())

	s.registerHealthRoutes()

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

// requestLogger logs ops requests at debug level. Probe and scrape traffic is
// skipped unless it fails, and server errors are raised to warn.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Status < 500 && isProbe(v.URI) {
				return nil
			}

			level := slog.LevelDebug
			if v.Status >= 500 {
				level = slog.LevelWarn
			}
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Log(c.Request().Context(), level, "Request", attrs...)
			return nil
		},
	})
}

func isProbe(uri string) bool {
	return strings.HasPrefix(uri, "/health/") || uri == "/metrics"
}
