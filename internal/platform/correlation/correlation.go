package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// ctxKey doubles as the log attribute name for the value it stores.
type ctxKey string

const (
	idKey      ctxKey = "correlation_id"
	sessionKey ctxKey = "gateway_session"
)

var logged = []ctxKey{idKey, sessionKey}

// NewID returns 8 hex characters, enough to follow one event through the logs.
func NewID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

func ID(ctx context.Context) (string, bool) {
	return lookup(ctx, idKey)
}

// WithSession tags ctx with the gateway session that produced the work.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

func Session(ctx context.Context) (string, bool) {
	return lookup(ctx, sessionKey)
}

func lookup(ctx context.Context, key ctxKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// Handler is a slog.Handler that copies the correlation and session ids from
// the record's context onto the record.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range logged {
		if v, ok := lookup(ctx, key); ok {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
