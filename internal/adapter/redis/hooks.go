package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
)

const backendName = "redis"

// MetricsHook records every command and pipeline against the store metrics.
type MetricsHook struct {
	m *metrics.StoreMetrics
}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(m *metrics.StoreMetrics) *MetricsHook {
	return &MetricsHook{m: m}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.m.ConnectionErrors.WithLabelValues(backendName).Inc()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.m.Observe(backendName, cmd.Name(), time.Since(start).Seconds(), isFailure(err))
		return err
	}
}

// ProcessPipelineHook records a pipeline as one "pipeline" operation.
func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.m.Observe(backendName, "pipeline", time.Since(start).Seconds(), isFailure(err))
		return err
	}
}

// BreakerHook fails commands fast while Redis keeps erroring.
type BreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*BreakerHook)(nil)

func NewBreakerHook() *BreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed", "component", backendName, "from", e.OldState.String(), "to", e.NewState.String())
		}).
		Build()
	return &BreakerHook{cb: cb}
}

func (h *BreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis dial rejected: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		h.record(err)
		return conn, err
	}
}

func (h *BreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			err := fmt.Errorf("redis %s rejected: %w", cmd.Name(), circuitbreaker.ErrOpen)
			cmd.SetErr(err)
			return err
		}
		err := next(ctx, cmd)
		h.record(err)
		return err
	}
}

func (h *BreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			err := fmt.Errorf("redis pipeline rejected: %w", circuitbreaker.ErrOpen)
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
			return err
		}
		err := next(ctx, cmds)
		h.record(err)
		return err
	}
}

func (h *BreakerHook) record(err error) {
	if isFailure(err) {
		h.cb.RecordError(err)
		return
	}
	h.cb.RecordSuccess()
}

// isFailure reports whether err counts against Redis. A missing key does not.
func isFailure(err error) bool {
	return err != nil && !errors.Is(err, goredis.Nil)
}
