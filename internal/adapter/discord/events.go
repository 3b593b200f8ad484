package discord

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pscheid92/shiritori/internal/domain"
)

const (
	EventReady         = "READY"
	EventMessageCreate = "MESSAGE_CREATE"
	EventReactionAdd   = "MESSAGE_REACTION_ADD"
)

// EventHandler reacts to the dispatch events the bot cares about.
type EventHandler interface {
	HandleMessage(ctx context.Context, msg domain.Message)
	HandleReactionAdd(ctx context.Context, ev domain.ReactionEvent)
}

// EventRouter decodes dispatch payloads and hands them to the handler.
// Events it does not know are logged and dropped.
type EventRouter struct {
	handler EventHandler
}

func NewEventRouter(handler EventHandler) *EventRouter {
	return &EventRouter{handler: handler}
}

func (r *EventRouter) Dispatch(ctx context.Context, eventType string, data json.RawMessage) {
	switch eventType {
	case EventReady:
		var ready readyData
		if err := json.Unmarshal(data, &ready); err != nil {
			slog.WarnContext(ctx, "Failed to decode READY payload", "error", err)
			return
		}
		slog.InfoContext(ctx, "Gateway ready", "user", ready.User.Username, "session_id", ready.SessionID)

	case EventMessageCreate:
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.WarnContext(ctx, "Failed to decode message payload", "error", err)
			return
		}
		if msg.ChannelID == "" {
			slog.WarnContext(ctx, "Skipping message without channel", "message_id", msg.ID)
			return
		}
		r.handler.HandleMessage(ctx, msg.toDomain())

	case EventReactionAdd:
		var ev wireReactionAdd
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.WarnContext(ctx, "Failed to decode reaction payload", "error", err)
			return
		}
		if ev.ChannelID == "" || ev.MessageID == "" {
			slog.WarnContext(ctx, "Skipping reaction without message reference")
			return
		}
		r.handler.HandleReactionAdd(ctx, ev.toDomain())

	default:
		slog.DebugContext(ctx, "Ignoring dispatch event", "event", eventType)
	}
}
