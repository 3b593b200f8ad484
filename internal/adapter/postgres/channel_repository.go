package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/shiritori/internal/domain"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

const (
	upsertChannelSQL = `
INSERT INTO channels (channel_id, data)
VALUES ($1, $2)
ON CONFLICT (channel_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	getChannelSQL = `SELECT data FROM channels WHERE channel_id = $1`

	listChannelsSQL = `SELECT channel_id FROM channels ORDER BY channel_id`
)

// ChannelRepo stores each channel record as a JSONB document keyed by channel id.
type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) Save(ctx context.Context, channel *domain.Channel) error {
	if channel.ID == "" {
		return domain.ErrInvalidChannelID
	}

	data, err := domain.MarshalChannel(channel)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, upsertChannelSQL, channel.ID, data); err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}
	return nil
}

func (r *ChannelRepo) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, getChannelSQL, channelID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	channel, err := domain.UnmarshalChannel(data)
	if err != nil {
		return nil, apperrors.ParseError("corrupt channel record", err).WithField("channel_id", channelID)
	}
	return channel, nil
}

func (r *ChannelRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listChannelsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan channel ids: %w", err)
	}
	return ids, nil
}

func (r *ChannelRepo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
