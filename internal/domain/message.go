package domain

import "context"

type Emoji struct {
	ID   string
	Name string
}

type Reaction struct {
	Emoji Emoji
	Count int
	Me    bool
}

type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Content   string
	Author    User
	Mentions  []User
	Reactions []Reaction
}

// ReactionCount returns the count reported for the named emoji, or 0.
func (m *Message) ReactionCount(emoji string) int {
	for _, r := range m.Reactions {
		if r.Emoji.Name == emoji {
			return r.Count
		}
	}
	return 0
}

type ReactionEvent struct {
	UserID    string
	ChannelID string
	MessageID string
	GuildID   string
	Emoji     Emoji
}

// Messenger issues outbound calls to the chat service's request/response API.
type Messenger interface {
	CreateMessage(ctx context.Context, channelID, content string) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	GetMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	DeleteAllReactions(ctx context.Context, channelID, messageID string) error
}

// Dictionary answers whether a word is recognized. Failures report false.
type Dictionary interface {
	IsWord(ctx context.Context, word string) bool
}
