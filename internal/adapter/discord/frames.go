package discord

import (
	"encoding/json"

	"github.com/pscheid92/shiritori/internal/domain"
)

const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

var heartbeatFrame = []byte(`{"op":1,"d":null}`)

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int            `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type identifyFrame struct {
	Op int          `json:"op"`
	D  identifyData `json:"d"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Wire shapes of the objects the bot reads. Unknown fields are ignored.

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type wireEmoji struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

type wireReaction struct {
	Count int       `json:"count"`
	Me    bool      `json:"me"`
	Emoji wireEmoji `json:"emoji"`
}

type wireMessage struct {
	ID        string         `json:"id"`
	ChannelID string         `json:"channel_id"`
	GuildID   string         `json:"guild_id"`
	Content   string         `json:"content"`
	Author    wireUser       `json:"author"`
	Mentions  []wireUser     `json:"mentions"`
	Reactions []wireReaction `json:"reactions"`
}

type wireReactionAdd struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	GuildID   string    `json:"guild_id"`
	Emoji     wireEmoji `json:"emoji"`
}

type readyData struct {
	SessionID string   `json:"session_id"`
	User      wireUser `json:"user"`
}

func (u wireUser) toDomain() domain.User {
	return domain.User{ID: u.ID, Username: u.Username, Bot: u.Bot}
}

func (e wireEmoji) toDomain() domain.Emoji {
	emoji := domain.Emoji{Name: e.Name}
	if e.ID != nil {
		emoji.ID = *e.ID
	}
	return emoji
}

func (m wireMessage) toDomain() domain.Message {
	msg := domain.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Author:    m.Author.toDomain(),
	}
	for _, u := range m.Mentions {
		msg.Mentions = append(msg.Mentions, u.toDomain())
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, domain.Reaction{
			Emoji: r.Emoji.toDomain(),
			Count: r.Count,
			Me:    r.Me,
		})
	}
	return msg
}

func (r wireReactionAdd) toDomain() domain.ReactionEvent {
	return domain.ReactionEvent{
		UserID:    r.UserID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		GuildID:   r.GuildID,
		Emoji:     r.Emoji.toDomain(),
	}
}
