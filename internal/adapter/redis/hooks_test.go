package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
)

func TestMetricsHook_RecordsCommands(t *testing.T) {
	m := metrics.NewStoreMetrics(prometheus.NewRegistry())
	hook := NewMetricsHook(m)
	ctx := context.Background()

	ok := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	missing := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	broken := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return errors.New("connection reset") })

	require.NoError(t, ok(ctx, goredis.NewStringCmd(ctx, "get", "channel:1")))
	require.ErrorIs(t, missing(ctx, goredis.NewStringCmd(ctx, "get", "channel:2")), goredis.Nil)
	require.Error(t, broken(ctx, goredis.NewStringCmd(ctx, "get", "channel:3")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("redis", "get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("redis", "get", "error")))
}

func TestMetricsHook_RecordsPipelineAsOneOperation(t *testing.T) {
	m := metrics.NewStoreMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	pipe := NewMetricsHook(m).ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })
	cmds := []goredis.Cmder{goredis.NewStatusCmd(ctx, "set", "a", "1"), goredis.NewIntCmd(ctx, "sadd", "channels", "a")}
	require.NoError(t, pipe(ctx, cmds))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("redis", "pipeline", "success")))
}

func TestBreakerHook_OpensAfterRepeatedFailures(t *testing.T) {
	hook := NewBreakerHook()
	ctx := context.Background()

	calls := 0
	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		calls++
		return errors.New("connection refused")
	})

	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	}
	require.Equal(t, 5, calls)

	cmd := goredis.NewStringCmd(ctx, "get", "k")
	err := process(ctx, cmd)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.Equal(t, 5, calls)
}

func TestBreakerHook_MissingKeysDoNotTrip(t *testing.T) {
	hook := NewBreakerHook()
	ctx := context.Background()

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	for range 10 {
		require.ErrorIs(t, process(ctx, goredis.NewStringCmd(ctx, "get", "k")), goredis.Nil)
	}
	assert.True(t, hook.cb.IsClosed())
}
