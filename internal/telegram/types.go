package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Update is one entry returned by getUpdates. Only message and callback
// query updates are requested.
type Update struct {
	UpdateID      int64
	Message       *Message
	CallbackQuery *CallbackQuery
}

// User is a Telegram account.
type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	LastName  string
	Username  string
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64
	Type string
}

// Message is an inbound or sent message.
type Message struct {
	MessageID int64
	From      *User
	Chat      Chat
	Date      int64
	Text      string
}

// CallbackQuery is an inline keyboard button press.
type CallbackQuery struct {
	ID      string
	From    User
	Message *Message
	Data    string
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton
}

// InlineKeyboardButton is one inline keyboard button.
type InlineKeyboardButton struct {
	Text         string
	CallbackData string
}

// ParseModeHTML selects Telegram's HTML formatting.
const ParseModeHTML = tgbotapi.ModeHTML

// SendMessageRequest is the sendMessage payload.
type SendMessageRequest struct {
	ChatID                int64
	Text                  string
	ParseMode             string
	ReplyMarkup           *InlineKeyboardMarkup
	DisableWebPagePreview bool
}

// EditMessageTextRequest is the editMessageText payload.
type EditMessageTextRequest struct {
	ChatID      int64
	MessageID   int64
	Text        string
	ParseMode   string
	ReplyMarkup *InlineKeyboardMarkup
}

// SendFileRequest uploads an in-memory file as a document or photo.
type SendFileRequest struct {
	ChatID    int64
	FileName  string
	Data      []byte
	Caption   string
	ParseMode string
}

// AnswerCallbackQueryRequest is the answerCallbackQuery payload.
type AnswerCallbackQueryRequest struct {
	CallbackQueryID string
	Text            string
	ShowAlert       bool
}

func (m *InlineKeyboardMarkup) toAPI() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.InlineKeyboard))
	for _, row := range m.InlineKeyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func updateFromAPI(u *tgbotapi.Update) Update {
	update := Update{UpdateID: int64(u.UpdateID), Message: messageFromAPI(u.Message)}
	if cq := u.CallbackQuery; cq != nil {
		update.CallbackQuery = &CallbackQuery{ID: cq.ID, Message: messageFromAPI(cq.Message), Data: cq.Data}
		if from := userFromAPI(cq.From); from != nil {
			update.CallbackQuery.From = *from
		}
	}
	return update
}

func messageFromAPI(m *tgbotapi.Message) *Message {
	if m == nil {
		return nil
	}
	msg := &Message{
		MessageID: int64(m.MessageID),
		From:      userFromAPI(m.From),
		Date:      int64(m.Date),
		Text:      m.Text,
	}
	if m.Chat != nil {
		msg.Chat = Chat{ID: m.Chat.ID, Type: m.Chat.Type}
	}
	return msg
}

func userFromAPI(u *tgbotapi.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}
