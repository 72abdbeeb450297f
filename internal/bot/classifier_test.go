package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantWait time.Duration
	}{
		{name: "Unauthorized", err: &telegram.APIError{StatusCode: http.StatusUnauthorized}, wantKind: KindProviderAuthFailure},
		{name: "Forbidden", err: &telegram.APIError{StatusCode: http.StatusForbidden, Description: "bot was blocked by the user"}, wantKind: KindProviderForbidden},
		{name: "BadRequest", err: &telegram.APIError{StatusCode: http.StatusBadRequest}, wantKind: KindProviderBadRequest},
		{name: "FloodControl", err: &telegram.APIError{StatusCode: http.StatusTooManyRequests, RetryAfter: 7 * time.Second}, wantKind: KindProviderRateLimited, wantWait: 7 * time.Second},
		{name: "ServerError", err: &telegram.APIError{StatusCode: http.StatusBadGateway}, wantKind: KindProviderOtherError},
		{name: "Network", err: &telegram.NetworkError{Method: "sendMessage", Err: errors.New("connection reset")}, wantKind: KindProviderNetworkError},
		{name: "WrappedProviderError", err: fmt.Errorf("send reply: %w", &telegram.APIError{StatusCode: http.StatusForbidden}), wantKind: KindProviderForbidden},
		{name: "Generic", err: errors.New("nil map"), wantKind: KindUnexpected},
		{name: "Panic", err: &PanicError{Value: "x"}, wantKind: KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, wait := Classify(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantWait, wait)
		})
	}

	kind, _ := Classify(nil)
	assert.Empty(t, kind)
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(KindProviderAuthFailure, 0))
	assert.Empty(t, UserMessage(KindProviderForbidden, 0))
	assert.Contains(t, UserMessage(KindProviderRateLimited, 2500*time.Millisecond), "3 s")
	for _, kind := range []ErrorKind{KindProviderBadRequest, KindProviderNetworkError, KindProviderOtherError, KindUnexpected} {
		assert.NotEmpty(t, UserMessage(kind, 0), kind)
	}
}

func TestErrorClassifier_OneNoticePerFailure(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantNotices int
		wantLevel   string
	}{
		{name: "Unexpected", err: errors.New("bug"), wantNotices: 1, wantLevel: "error"},
		{name: "Network", err: &telegram.NetworkError{Err: errors.New("timeout")}, wantNotices: 1, wantLevel: "warn"},
		{name: "RateLimited", err: &telegram.APIError{StatusCode: 429, RetryAfter: 5 * time.Second}, wantNotices: 1, wantLevel: "warn"},
		{name: "Forbidden", err: &telegram.APIError{StatusCode: 403}, wantNotices: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replier := &fakeReplier{}
			logger := &recordingLogger{}
			report := NewErrorReport()
			c := NewErrorClassifier(ClassifierOptions{Logger: logger, Notifier: replier, Report: report})

			err := c.Process(context.Background(), messageEvent(3, "/status"), func(context.Context, *Event) error {
				return tt.err
			})
			require.NoError(t, err)
			assert.Len(t, replier.noticeTexts(), tt.wantNotices)
			assert.Equal(t, 1, report.Stats().Total)

			require.NotEmpty(t, logger.entries)
			if tt.wantLevel != "" {
				assert.Equal(t, tt.wantLevel, logger.entries[0].level)
			}
		})
	}
}

func TestErrorClassifier_NoticeFailureIsSwallowed(t *testing.T) {
	replier := &fakeReplier{failSend: true}
	logger := &recordingLogger{}
	c := NewErrorClassifier(ClassifierOptions{Logger: logger, Notifier: replier})

	err := c.Process(context.Background(), messageEvent(3, "/status"), func(context.Context, *Event) error {
		return errors.New("bug")
	})
	require.NoError(t, err)
	assert.Len(t, replier.noticeTexts(), 1)
	assert.Len(t, logger.byMessage("Failed to deliver error notice"), 1)
}

func TestErrorClassifier_AuthFailureIsFatal(t *testing.T) {
	replier := &fakeReplier{}
	var fatal error
	c := NewErrorClassifier(ClassifierOptions{Notifier: replier, OnFatal: func(err error) { fatal = err }})

	credErr := &telegram.APIError{StatusCode: 401, Description: "Unauthorized"}
	require.NoError(t, c.Process(context.Background(), messageEvent(3, "/start"), func(context.Context, *Event) error {
		return credErr
	}))

	assert.Same(t, credErr, fatal)
	assert.Empty(t, replier.noticeTexts(), "no reply is possible without a valid credential")
}

func TestErrorClassifier_RecoversPanics(t *testing.T) {
	replier := &fakeReplier{}
	logger := &recordingLogger{}
	c := NewErrorClassifier(ClassifierOptions{Logger: logger, Notifier: replier})

	assert.NotPanics(t, func() {
		err := c.Process(context.Background(), messageEvent(3, "/start"), func(context.Context, *Event) error {
			var m map[string]int
			m["x"] = 1
			return nil
		})
		assert.NoError(t, err)
	})
	assert.Equal(t, []string{UserMessage(KindUnexpected, 0)}, replier.noticeTexts())

	require.NotEmpty(t, logger.entries)
	assert.Equal(t, "error", logger.entries[0].level)
	assert.NotEmpty(t, logger.entries[0].fields["stack"])
}

func TestErrorClassifier_CancellationIsQuiet(t *testing.T) {
	replier := &fakeReplier{}
	report := NewErrorReport()
	c := NewErrorClassifier(ClassifierOptions{Notifier: replier, Report: report})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Process(ctx, messageEvent(3, "/start"), func(ctx context.Context, _ *Event) error {
		return ctx.Err()
	}))
	assert.Empty(t, replier.noticeTexts())
	assert.Zero(t, report.Stats().Total)
}
