package bot

import (
	"context"
	"unicode/utf8"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

// Bot API limits on message text and attachment caption length.
const (
	maxMessageRunes = 4096
	maxCaptionRunes = 1024
)

// Messenger is the outbound side of the messaging provider.
type Messenger interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error)
	EditMessageText(ctx context.Context, req telegram.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, req telegram.AnswerCallbackQueryRequest) error
	SendDocument(ctx context.Context, req telegram.SendFileRequest) (*telegram.Message, error)
	SendPhoto(ctx context.Context, req telegram.SendFileRequest) (*telegram.Message, error)
}

// FileKind selects how an attachment is presented.
type FileKind int

const (
	// FileDocument is a downloadable file.
	FileDocument FileKind = iota
	// FilePhoto is an inline image.
	FilePhoto
)

// File is an in-memory outbound attachment.
type File struct {
	Kind    FileKind
	Name    string
	Data    []byte
	Caption string
}

// Notifier delivers a short notice for an event, best effort.
type Notifier interface {
	Notify(ctx context.Context, ev *Event, text string) bool
}

// Replier is what command handlers use to answer.
type Replier interface {
	Notifier
	Reply(ctx context.Context, ev *Event, text string, markup *telegram.InlineKeyboardMarkup) bool
	Edit(ctx context.Context, ev *Event, text string) bool
	AnswerCallback(ctx context.Context, ev *Event, text string, alert bool) bool
	SendFile(ctx context.Context, ev *Event, file File) bool
}

// Responder sends every outbound call through a RetryingCaller.
type Responder struct {
	api   Messenger
	retry *RetryingCaller
}

// NewResponder returns a Responder over api.
func NewResponder(api Messenger, retry *RetryingCaller) *Responder {
	return &Responder{api: api, retry: retry}
}

// Reply sends an HTML message to the event's chat.
func (r *Responder) Reply(ctx context.Context, ev *Event, text string, markup *telegram.InlineKeyboardMarkup) bool {
	if ev == nil {
		return false
	}
	req := telegram.SendMessageRequest{
		ChatID:                ev.ChatID,
		Text:                  truncate(text),
		ParseMode:             telegram.ParseModeHTML,
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	}
	return r.retry.Do(ctx, "sendMessage", func(ctx context.Context) error {
		_, err := r.api.SendMessage(ctx, req)
		return err
	})
}

// Edit replaces the text of the message a callback came from. Message events
// fall back to a fresh reply.
func (r *Responder) Edit(ctx context.Context, ev *Event, text string) bool {
	if ev == nil {
		return false
	}
	if ev.Callback == nil || ev.Callback.MessageID == 0 {
		return r.Reply(ctx, ev, text, nil)
	}
	req := telegram.EditMessageTextRequest{
		ChatID:    ev.ChatID,
		MessageID: ev.Callback.MessageID,
		Text:      truncate(text),
		ParseMode: telegram.ParseModeHTML,
	}
	return r.retry.Do(ctx, "editMessageText", func(ctx context.Context) error {
		return r.api.EditMessageText(ctx, req)
	})
}

// AnswerCallback acknowledges a callback query. No-op for message events.
func (r *Responder) AnswerCallback(ctx context.Context, ev *Event, text string, alert bool) bool {
	if ev == nil || ev.Callback == nil {
		return false
	}
	req := telegram.AnswerCallbackQueryRequest{CallbackQueryID: ev.Callback.QueryID, Text: text, ShowAlert: alert}
	return r.retry.Do(ctx, "answerCallbackQuery", func(ctx context.Context) error {
		return r.api.AnswerCallbackQuery(ctx, req)
	})
}

// SendFile uploads file to the event's chat.
func (r *Responder) SendFile(ctx context.Context, ev *Event, file File) bool {
	if ev == nil || len(file.Data) == 0 {
		return false
	}
	req := telegram.SendFileRequest{
		ChatID:    ev.ChatID,
		FileName:  file.Name,
		Data:      file.Data,
		Caption:   truncateTo(file.Caption, maxCaptionRunes),
		ParseMode: telegram.ParseModeHTML,
	}
	if file.Kind == FilePhoto {
		return r.retry.Do(ctx, "sendPhoto", func(ctx context.Context) error {
			_, err := r.api.SendPhoto(ctx, req)
			return err
		})
	}
	return r.retry.Do(ctx, "sendDocument", func(ctx context.Context) error {
		_, err := r.api.SendDocument(ctx, req)
		return err
	})
}

// Notify answers callbacks with an alert and messages with a reply, so each
// notice is exactly one user-visible message.
func (r *Responder) Notify(ctx context.Context, ev *Event, text string) bool {
	if ev == nil {
		return false
	}
	if ev.Kind == core.EventTypeCallback {
		return r.AnswerCallback(ctx, ev, text, true)
	}
	return r.Reply(ctx, ev, text, nil)
}

func truncate(text string) string {
	return truncateTo(text, maxMessageRunes)
}

func truncateTo(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
