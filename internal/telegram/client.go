package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	defaultRequestTimeout = 35 * time.Second
	defaultConnectTimeout = 10 * time.Second
	maxResponseBytes      = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// SendRate caps outbound sends per second across all chats. Zero disables pacing.
	SendRate  float64
	SendBurst int
}

// Client speaks the Telegram Bot API through tgbotapi, adding per-call
// contexts, send pacing and typed errors.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// Limiter paces outbound sends; nil disables pacing.
	Limiter *rate.Limiter
}

// NewClient returns a client with timeouts and pacing applied.
func NewClient(opts Options) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: requestTimeout,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}

	client := &Client{
		BaseURL: strings.TrimRight(base, "/"),
		Token:   strings.TrimSpace(opts.Token),
		HTTPClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst < 1 {
			burst = 1
		}
		client.Limiter = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}
	return client
}

// GetMe returns the bot's own account. It doubles as a credential check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user tgbotapi.User
	err := c.call(ctx, "getMe", func(api *tgbotapi.BotAPI) (err error) {
		user, err = api.GetMe()
		return err
	})
	if err != nil {
		return nil, err
	}
	return userFromAPI(&user), nil
}

// GetUpdates long-polls for message and callback query updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = int(timeout / time.Second)
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	var raw []tgbotapi.Update
	err := c.call(ctx, "getUpdates", func(api *tgbotapi.BotAPI) (err error) {
		raw, err = api.GetUpdates(cfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	updates := make([]Update, 0, len(raw))
	for i := range raw {
		updates = append(updates, updateFromAPI(&raw[i]))
	}
	return updates, nil
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	msg := tgbotapi.NewMessage(req.ChatID, req.Text)
	msg.ParseMode = req.ParseMode
	msg.DisableWebPagePreview = req.DisableWebPagePreview
	if req.ReplyMarkup != nil {
		msg.ReplyMarkup = req.ReplyMarkup.toAPI()
	}

	var sent tgbotapi.Message
	err := c.call(ctx, "sendMessage", func(api *tgbotapi.BotAPI) (err error) {
		sent, err = api.Send(msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return messageFromAPI(&sent), nil
}

// SendDocument uploads req.Data as a file attachment.
func (c *Client) SendDocument(ctx context.Context, req SendFileRequest) (*Message, error) {
	doc := tgbotapi.NewDocument(req.ChatID, tgbotapi.FileBytes{Name: req.FileName, Bytes: req.Data})
	doc.Caption = req.Caption
	doc.ParseMode = req.ParseMode
	return c.upload(ctx, "sendDocument", req, doc)
}

// SendPhoto uploads req.Data as an inline image.
func (c *Client) SendPhoto(ctx context.Context, req SendFileRequest) (*Message, error) {
	photo := tgbotapi.NewPhoto(req.ChatID, tgbotapi.FileBytes{Name: req.FileName, Bytes: req.Data})
	photo.Caption = req.Caption
	photo.ParseMode = req.ParseMode
	return c.upload(ctx, "sendPhoto", req, photo)
}

func (c *Client) upload(ctx context.Context, method string, req SendFileRequest, cfg tgbotapi.Chattable) (*Message, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("telegram %s: empty file %q", method, req.FileName)
	}
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	var sent tgbotapi.Message
	err := c.call(ctx, method, func(api *tgbotapi.BotAPI) (err error) {
		sent, err = api.Send(cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return messageFromAPI(&sent), nil
}

// EditMessageText replaces the text of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(req.ChatID, int(req.MessageID), req.Text)
	edit.ParseMode = req.ParseMode
	if req.ReplyMarkup != nil {
		markup := req.ReplyMarkup.toAPI()
		edit.ReplyMarkup = &markup
	}
	return c.call(ctx, "editMessageText", func(api *tgbotapi.BotAPI) error {
		_, err := api.Request(edit)
		return err
	})
}

// AnswerCallbackQuery acknowledges an inline button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, req AnswerCallbackQueryRequest) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	answer := tgbotapi.NewCallback(req.CallbackQueryID, req.Text)
	answer.ShowAlert = req.ShowAlert
	return c.call(ctx, "answerCallbackQuery", func(api *tgbotapi.BotAPI) error {
		_, err := api.Request(answer)
		return err
	})
}

func (c *Client) pace(ctx context.Context) error {
	if c == nil || c.Limiter == nil {
		return nil
	}
	return c.Limiter.Wait(ctx)
}

// call runs fn against a BotAPI whose HTTP requests carry ctx, then turns
// whatever went wrong into an *APIError or *NetworkError.
func (c *Client) call(ctx context.Context, method string, fn func(api *tgbotapi.BotAPI) error) error {
	if c == nil {
		return errors.New("telegram client not configured")
	}
	if c.Token == "" {
		return errors.New("bot token is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return &NetworkError{Method: method, Err: err}
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	doer := &contextDoer{ctx: ctx, client: httpClient}

	api := &tgbotapi.BotAPI{Token: c.Token, Client: doer}
	api.SetAPIEndpoint(c.BaseURL + "/bot%s/%s")

	err := fn(api)
	if err == nil {
		return nil
	}
	return classify(method, err, doer.last)
}

// classify maps a tgbotapi failure onto the package's error types.
func classify(method string, err error, last *capturedResponse) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return newAPIError(method, tgErr, last)
	}
	if last == nil {
		return &NetworkError{Method: method, Err: stripURL(err)}
	}
	if last.status < http.StatusOK || last.status >= http.StatusMultipleChoices {
		return newAPIError(method, nil, last)
	}
	return fmt.Errorf("decode %s response: %w", method, err)
}

// stripURL drops the *url.Error wrapper so the token-bearing URL never ends up
// in an error string.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
