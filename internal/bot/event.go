// Package bot implements the per-event processing pipeline: authorization,
// rate limiting, audit recording and error classification around command
// handlers, plus the long-poll runner and outbound retry wrapper.
package bot

import (
	"strings"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

// Event is an inbound bot event. Exactly one of Message and Callback is set,
// matching Kind.
type Event struct {
	Kind     core.EventType
	Identity core.Identity
	Meta     core.DisplayMeta
	ChatID   int64

	// BotUsername is this bot's username. When set, commands addressed to
	// another bot ("/start@OtherBot") are treated as plain text.
	BotUsername string

	Message  *MessagePayload
	Callback *CallbackPayload
}

// MessagePayload is the body of a text message event.
type MessagePayload struct {
	MessageID int64
	Text      string
}

// CallbackPayload is the body of an inline keyboard press.
type CallbackPayload struct {
	QueryID string
	// MessageID is the message carrying the pressed keyboard; zero if unknown.
	MessageID int64
	Data      string
}

// NewMessageEvent builds a message event.
func NewMessageEvent(from core.Identity, meta core.DisplayMeta, chatID, messageID int64, text string) *Event {
	return &Event{
		Kind:     core.EventTypeMessage,
		Identity: from,
		Meta:     meta,
		ChatID:   chatID,
		Message:  &MessagePayload{MessageID: messageID, Text: text},
	}
}

// NewCallbackEvent builds a callback event.
func NewCallbackEvent(from core.Identity, meta core.DisplayMeta, chatID int64, queryID string, messageID int64, data string) *Event {
	return &Event{
		Kind:     core.EventTypeCallback,
		Identity: from,
		Meta:     meta,
		ChatID:   chatID,
		Callback: &CallbackPayload{QueryID: queryID, MessageID: messageID, Data: data},
	}
}

// EventFromUpdate converts a polled update. Updates that are neither a
// message from a user nor a callback query are skipped.
func EventFromUpdate(update telegram.Update) (*Event, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.IsBot {
			return nil, false
		}
		return NewMessageEvent(core.Identity(msg.From.ID), metaFromUser(*msg.From), msg.Chat.ID, msg.MessageID, msg.Text), true
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		chatID := query.From.ID
		var messageID int64
		if query.Message != nil {
			chatID = query.Message.Chat.ID
			messageID = query.Message.MessageID
		}
		return NewCallbackEvent(core.Identity(query.From.ID), metaFromUser(query.From), chatID, query.ID, messageID, query.Data), true
	default:
		return nil, false
	}
}

func metaFromUser(u telegram.User) core.DisplayMeta {
	return core.DisplayMeta{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

// Command returns the leading command token of a message ("/start"),
// lowercased and stripped of its "@botname" suffix, and the remaining
// arguments. Non-command events and commands for other bots return an empty
// name.
func (e *Event) Command() (string, []string) {
	if e == nil || e.Kind != core.EventTypeMessage || e.Message == nil {
		return "", nil
	}
	fields := strings.Fields(e.Message.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") || len(fields[0]) == 1 {
		return "", nil
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at > 0 {
		target := name[at+1:]
		if e.BotUsername != "" && !strings.EqualFold(target, strings.TrimPrefix(e.BotUsername, "@")) {
			return "", nil
		}
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

// AuditCommand is the command name recorded for the event: the command token
// when present, otherwise the generic "message" or "callback" category.
func (e *Event) AuditCommand() string {
	if name, _ := e.Command(); name != "" {
		return name
	}
	if e != nil && e.Kind == core.EventTypeCallback {
		return string(core.EventTypeCallback)
	}
	return string(core.EventTypeMessage)
}
