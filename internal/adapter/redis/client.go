package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
)

// NewClient parses redisURL, installs the breaker and metrics hooks, and
// verifies the connection with PING. m may be nil.
func NewClient(ctx context.Context, redisURL string, m *metrics.StoreMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	if m != nil {
		client.AddHook(NewMetricsHook(m))
	}
	client.AddHook(NewBreakerHook())

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
