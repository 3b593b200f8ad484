package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/shiritori/internal/domain"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

const channelIndexKey = "channels"

// ChannelRepo stores each channel record as a JSON string under channel:<id>
// and keeps the set of known ids under "channels".
type ChannelRepo struct {
	rdb *goredis.Client
}

func NewChannelRepo(rdb *goredis.Client) *ChannelRepo {
	return &ChannelRepo{rdb: rdb}
}

func (r *ChannelRepo) Save(ctx context.Context, channel *domain.Channel) error {
	if channel.ID == "" {
		return domain.ErrInvalidChannelID
	}

	data, err := domain.MarshalChannel(channel)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, channelKey(channel.ID), data, 0)
	pipe.SAdd(ctx, channelIndexKey, channel.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save channel pipeline failed: %w", err)
	}
	return nil
}

func (r *ChannelRepo) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	data, err := r.rdb.Get(ctx, channelKey(channelID)).Bytes()
	if errors.Is(err, goredis.Nil) {
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
	ids, err := r.rdb.SMembers(ctx, channelIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *ChannelRepo) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func channelKey(channelID string) string {
	return "channel:" + channelID
}
