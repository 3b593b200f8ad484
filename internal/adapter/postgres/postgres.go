package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
)

//go:embed schemas/*.sql
var migrationFiles embed.FS

const (
	applicationName = "shiritori"
	maxPoolConns    = 4
)

// Connect opens a small pool and pings it. With m set, every query is traced
// into the store metrics.
func Connect(ctx context.Context, databaseURL string, m *metrics.StoreMetrics) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	if m != nil {
		poolCfg.ConnConfig.Tracer = NewMetricsTracer(m)
	}
	if poolCfg.MaxConns > maxPoolConns {
		poolCfg.MaxConns = maxPoolConns
	}

	slog.Info("Database SSL mode", "sslmode", extractSSLMode(databaseURL))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

func extractSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "unknown"
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "" {
		return "prefer (default)"
	}
	return mode
}

// migrationLockID is the advisory lock every instance takes before migrating
// ("shiri" in ASCII hex).
const migrationLockID = 0x7368697269

const migrationUnlockTimeout = 5 * time.Second

// RunMigrationsWithLock applies the embedded schemas while holding the
// migration advisory lock, so concurrent starts migrate once.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	return withAdvisoryLock(ctx, conn.Conn(), migrationLockID, func() error {
		return migrateSchemas(ctx, conn.Conn())
	})
}

func migrateSchemas(ctx context.Context, conn *pgx.Conn) error {
	schemas, err := fs.Sub(migrationFiles, "schemas")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, "public.schema_version")
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(schemas); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	migrator.OnStart = func(sequence int32, name, _, _ string) {
		slog.Info("Applying migration", "sequence", sequence, "name", name)
	}

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	current, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	slog.Info("Database schema up to date", "version", current, "available", len(migrator.Migrations))
	return nil
}

// withAdvisoryLock runs fn while holding a session-level advisory lock on conn.
// The unlock runs even when ctx is already cancelled.
func withAdvisoryLock(ctx context.Context, conn *pgx.Conn, lockID int64, fn func() error) error {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), migrationUnlockTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			slog.Error("Failed to release advisory lock", "lock_id", lockID, "error", err)
		}
	}()

	return fn()
}
