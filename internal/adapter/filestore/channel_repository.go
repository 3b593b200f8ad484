// Package filestore persists channels as one JSON file per channel:
// <root>/<channel_id>/data.json.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/pscheid92/shiritori/internal/domain"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

const dataFile = "data.json"

type ChannelRepo struct {
	root string
}

func NewChannelRepo(root string) *ChannelRepo {
	return &ChannelRepo{root: root}
}

// Save writes the record to a temp file in the channel directory and renames
// it over data.json, so readers never observe a partial record.
func (r *ChannelRepo) Save(_ context.Context, channel *domain.Channel) error {
	dir, err := r.channelDir(channel.ID)
	if err != nil {
		return err
	}

	data, err := domain.MarshalChannel(channel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create channel directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, dataFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write channel record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync channel record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close channel record: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, dataFile)); err != nil {
		return fmt.Errorf("failed to replace channel record: %w", err)
	}
	return nil
}

func (r *ChannelRepo) Get(_ context.Context, channelID string) (*domain.Channel, error) {
	dir, err := r.channelDir(channelID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, dataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channel record: %w", err)
	}

	channel, err := domain.UnmarshalChannel(data)
	if err != nil {
		return nil, apperrors.ParseError("corrupt channel record", err).WithField("path", dir)
	}
	return channel, nil
}

// List returns the name of every top-level directory under root. A missing
// root means nothing has been registered yet.
func (r *ChannelRepo) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channels directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Ping verifies the root directory is usable, creating it if needed.
func (r *ChannelRepo) Ping(_ context.Context) error {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("channels directory unavailable: %w", err)
	}
	return nil
}

func (r *ChannelRepo) channelDir(channelID string) (string, error) {
	if channelID == "" || !filepath.IsLocal(channelID) || filepath.Base(channelID) != channelID {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidChannelID, channelID)
	}
	return filepath.Join(r.root, channelID), nil
}
