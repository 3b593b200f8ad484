package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Channel is the game state of one registered conversation channel.
type Channel struct {
	ID    string
	Users []string
	Words map[string]struct{}
}

func NewChannel(id string) *Channel {
	return &Channel{
		ID:    id,
		Users: []string{},
		Words: make(map[string]struct{}),
	}
}

// Clone returns a deep copy safe to hand out of a lock.
func (c *Channel) Clone() *Channel {
	return &Channel{
		ID:    c.ID,
		Users: slices.Clone(c.Users),
		Words: maps.Clone(c.Words),
	}
}

func (c *Channel) HasWord(word string) bool {
	_, ok := c.Words[word]
	return ok
}

// SortedWords returns the vocabulary in lexical order.
func (c *Channel) SortedWords() []string {
	return slices.Sorted(maps.Keys(c.Words))
}

// channelRecord is the durable JSON form shared by every repository backend.
type channelRecord struct {
	ChannelID string   `json:"channel_id"`
	Users     []string `json:"users"`
	Words     []string `json:"words"`
}

// MarshalChannel encodes a channel into its durable record.
func MarshalChannel(c *Channel) ([]byte, error) {
	users := c.Users
	if users == nil {
		users = []string{}
	}
	rec := channelRecord{
		ChannelID: c.ID,
		Users:     users,
		Words:     c.SortedWords(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal channel %s: %w", c.ID, err)
	}
	return data, nil
}

// UnmarshalChannel decodes a durable record. Records written before words were
// tracked carry "words": null and load as an empty vocabulary.
func UnmarshalChannel(data []byte) (*Channel, error) {
	var rec channelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel record: %w", err)
	}
	if rec.ChannelID == "" {
		return nil, errors.New("channel record has no channel_id")
	}

	c := NewChannel(rec.ChannelID)
	if rec.Users != nil {
		c.Users = rec.Users
	}
	for _, w := range rec.Words {
		c.Words[w] = struct{}{}
	}
	return c, nil
}

// ChannelRepository is the durable one-record-per-channel store.
type ChannelRepository interface {
	Save(ctx context.Context, channel *Channel) error
	Get(ctx context.Context, channelID string) (*Channel, error)
	List(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}
