package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/shiritori/internal/platform/correlation"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

type errorResponse struct {
	Error string              `json:"error"`
	Type  apperrors.ErrorType `json:"type"`
}

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware turns handler errors into JSON responses. Echo's own
// HTTP errors pass through untouched.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			errType := apperrors.TypeOf(err)
			status := statusFor(errType)
			logError(c, err, errType, status)

			message := "internal server error"
			var structured *apperrors.Error
			if errType == apperrors.TypeValidation && errors.As(err, &structured) {
				message = structured.Message
			}

			if err := c.JSON(status, errorResponse{Error: message, Type: errType}); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.TypeValidation:
		return http.StatusBadRequest
	case apperrors.TypeTransport:
		return http.StatusBadGateway
	case apperrors.TypePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logError(c echo.Context, err error, errType apperrors.ErrorType, status int) {
	attrs := []any{
		"error_type", errType,
		"error", err,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
	}

	var structured *apperrors.Error
	if errors.As(err, &structured) {
		for k, v := range structured.Context {
			attrs = append(attrs, k, v)
		}
	}

	ctx := c.Request().Context()
	if errType == apperrors.TypeValidation {
		slog.InfoContext(ctx, "Validation error", attrs...)
		return
	}
	slog.ErrorContext(ctx, "Request failed", attrs...)
}
