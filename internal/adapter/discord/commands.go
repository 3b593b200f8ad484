package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
	"github.com/pscheid92/shiritori/internal/platform/retry"
)

// CommandRegistrar overwrites an application's command definitions.
type CommandRegistrar interface {
	BulkOverwriteCommands(ctx context.Context, appID string, commands json.RawMessage) error
}

// DefaultCommandPolicy is the retry policy used at startup.
var DefaultCommandPolicy = retry.Policy{
	MaxAttempts:      4,
	InitialBackoff:   time.Second,
	MaxBackoff:       10 * time.Second,
	RateLimitBackoff: 5 * time.Second,
}

// RegisterCommands reads a JSON array of command definitions from path and
// uploads it, retrying transient failures.
func RegisterCommands(ctx context.Context, registrar CommandRegistrar, appID, path string, policy retry.Policy) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read commands file: %w", err)
	}

	var defs []json.RawMessage
	if err := json.Unmarshal(raw, &defs); err != nil {
		return apperrors.ParseError("commands file is not a JSON array", err).WithField("path", path)
	}

	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.WarnContext(ctx, "Command registration failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		}
	}

	err = retry.DoVoid(ctx, policy, classifyCommandError, func(ctx context.Context) error {
		return registrar.BulkOverwriteCommands(ctx, appID, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	slog.InfoContext(ctx, "Commands registered", "count", len(defs), "app_id", appID)
	return nil
}

func classifyCommandError(err error) retry.Action {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Stop
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return retry.After
		case apiErr.Status >= http.StatusInternalServerError:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	if apperrors.IsType(err, apperrors.TypeTransport) {
		return retry.Retry
	}
	return retry.Stop
}
