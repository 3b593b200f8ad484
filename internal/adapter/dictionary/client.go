// Package dictionary checks candidate words against a public dictionary API.
package dictionary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
	"github.com/pscheid92/shiritori/internal/platform/version"
)

const (
	breakerFailureThreshold = 5
	breakerDelay            = 30 * time.Second
	maxDrainBytes           = 64 << 10
)

// Client answers "is this a recognized word". Any response body starting
// with '[' counts as recognized; everything else, including transport
// failures and an open breaker, counts as not recognized.
type Client struct {
	baseURL string
	http    *http.Client
	breaker circuitbreaker.CircuitBreaker[any]
	group   singleflight.Group
	metrics *metrics.DictionaryMetrics
}

func NewClient(baseURL string, httpClient *http.Client, m *metrics.DictionaryMetrics) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(breakerFailureThreshold).
		WithDelay(breakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "dictionary",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		breaker: breaker,
		metrics: m,
	}
}

// IsWord looks word up. Concurrent lookups of the same word share one request.
func (c *Client) IsWord(ctx context.Context, word string) bool {
	v, err, shared := c.group.Do(word, func() (any, error) {
		return c.lookup(ctx, word)
	})
	if err != nil {
		slog.WarnContext(ctx, "Dictionary lookup failed", "word", word, "error", err)
		c.record("error")
		return false
	}

	recognized, _ := v.(bool)
	slog.DebugContext(ctx, "Dictionary lookup", "word", word, "recognized", recognized, "shared", shared)
	if recognized {
		c.record("recognized")
	} else {
		c.record("unrecognized")
	}
	return recognized
}

func (c *Client) lookup(ctx context.Context, word string) (bool, error) {
	if !c.breaker.TryAcquirePermit() {
		return false, apperrors.TransportError("dictionary circuit breaker open", circuitbreaker.ErrOpen)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(word), nil)
	if err != nil {
		c.breaker.RecordSuccess()
		return false, fmt.Errorf("failed to build dictionary request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordError(err)
		return false, apperrors.TransportError("dictionary request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		err := fmt.Errorf("dictionary returned status %d", resp.StatusCode)
		c.breaker.RecordError(err)
		return false, apperrors.TransportError("dictionary unavailable", err)
	}
	c.breaker.RecordSuccess()

	first := make([]byte, 1)
	n, _ := io.ReadFull(resp.Body, first)
	return n == 1 && first[0] == '[', nil
}

func (c *Client) record(result string) {
	if c.metrics != nil {
		c.metrics.Lookups.WithLabelValues(result).Inc()
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return 0
	}
}
