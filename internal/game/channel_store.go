package game

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/pscheid92/shiritori/internal/domain"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

// ChannelStore is the in-memory registry of channels, backed by a durable
// repository. All methods are safe for concurrent use.
type ChannelStore struct {
	repo domain.ChannelRepository

	mu       sync.RWMutex
	channels map[string]*domain.Channel
}

func NewChannelStore(repo domain.ChannelRepository) *ChannelStore {
	return &ChannelStore{
		repo:     repo,
		channels: make(map[string]*domain.Channel),
	}
}

// Register creates an empty channel, persists it, then makes it visible.
// The write lock is held across the persist.
func (s *ChannelStore) Register(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[channelID]; ok {
		return domain.ErrChannelAlreadyRegistered
	}

	channel := domain.NewChannel(channelID)
	if err := s.repo.Save(ctx, channel); err != nil {
		return apperrors.PersistenceError("failed to persist new channel", err).WithField("channel_id", channelID)
	}

	s.channels[channelID] = channel
	return nil
}

func (s *ChannelStore) Exists(channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.channels[channelID]
	return ok
}

// Load reads a persisted channel and installs it, replacing any in-memory entry.
func (s *ChannelStore) Load(ctx context.Context, channelID string) error {
	channel, err := s.repo.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}

	s.mu.Lock()
	s.channels[channel.ID] = channel
	s.mu.Unlock()
	return nil
}

// LoadAll recovers every persisted channel. Records that fail to load are
// logged and skipped; only a failure to enumerate the store is returned.
func (s *ChannelStore) LoadAll(ctx context.Context) (int, error) {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return 0, apperrors.PersistenceError("failed to list channels", err)
	}

	loaded := 0
	for _, id := range ids {
		if err := s.Load(ctx, id); err != nil {
			slog.WarnContext(ctx, "Skipping unreadable channel record", "channel_id", id, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// AdmitWord inserts an already-normalized word. The updated record is
// persisted; if that fails the word stays admitted in memory and the error is
// returned so the caller can log it.
func (s *ChannelStore) AdmitWord(ctx context.Context, channelID, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return domain.ErrChannelNotFound
	}
	if channel.HasWord(word) {
		return nil
	}
	channel.Words[word] = struct{}{}

	if err := s.repo.Save(ctx, channel); err != nil {
		return apperrors.PersistenceError("failed to persist admitted word", err).
			WithField("channel_id", channelID).
			WithField("word", word)
	}
	return nil
}

// Words returns a sorted snapshot of the channel's vocabulary.
func (s *ChannelStore) Words(channelID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return channel.SortedWords(), nil
}

func (s *ChannelStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

// SaveAll flushes every channel to the repository.
func (s *ChannelStore) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	snapshot := make([]*domain.Channel, 0, len(s.channels))
	for _, channel := range s.channels {
		snapshot = append(snapshot, channel.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(snapshot, func(a, b *domain.Channel) int { return cmp.Compare(a.ID, b.ID) })

	var errs []error
	for _, channel := range snapshot {
		if err := s.repo.Save(ctx, channel); err != nil {
			errs = append(errs, fmt.Errorf("failed to save channel %s: %w", channel.ID, err))
		}
	}
	return errors.Join(errs...)
}
