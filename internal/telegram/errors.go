package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// APIError is returned when the Bot API answers with ok=false or a non-2xx
// status.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	// RetryAfter is the provider's wait hint for flood control responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e == nil {
		return "telegram api error"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s failed: status %d: %s (retry after %s)", e.Method, e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s failed: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// NetworkError wraps a transport failure. It never carries the request URL,
// which embeds the bot token.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "telegram network error"
	}
	return fmt.Sprintf("telegram %s: network error: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// capturedResponse is what contextDoer saw of the last HTTP response.
type capturedResponse struct {
	status int
	header http.Header
	body   []byte
}

// contextDoer satisfies tgbotapi.HTTPClient. It binds every request to ctx
// and keeps a copy of the response so failures tgbotapi cannot decode still
// carry the status.
type contextDoer struct {
	ctx    context.Context
	client *http.Client
	last   *capturedResponse
}

func (d *contextDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req.WithContext(d.ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	d.last = &capturedResponse{status: resp.StatusCode, header: resp.Header, body: body}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func newAPIError(method string, tgErr *tgbotapi.Error, last *capturedResponse) *APIError {
	apiErr := &APIError{Method: method}
	if last != nil {
		apiErr.StatusCode = last.status
	}
	if tgErr != nil {
		if tgErr.Code != 0 {
			apiErr.StatusCode = tgErr.Code
		}
		apiErr.Description = strings.TrimSpace(tgErr.Message)
		if tgErr.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(tgErr.RetryAfter) * time.Second
		}
	}
	if last != nil {
		if apiErr.Description == "" {
			apiErr.Description = strings.TrimSpace(string(last.body))
		}
		if apiErr.RetryAfter == 0 {
			apiErr.RetryAfter = retryAfterHeader(last.header)
		}
	}
	return apiErr
}

func retryAfterHeader(header http.Header) time.Duration {
	if header == nil {
		return 0
	}

	retry := header.Get("Retry-After")
	if retry == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
