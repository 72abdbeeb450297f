package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

type pollResult struct {
	updates []telegram.Update
	err     error
}

// scriptedSource replays results, then blocks until the poll is cancelled.
type scriptedSource struct {
	mu      sync.Mutex
	results []pollResult
	offsets []int64
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.results) > 0 {
		next := s.results[0]
		s.results = s.results[1:]
		s.mu.Unlock()
		return next.updates, next.err
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedSource) seenOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.offsets...)
}

type collectingHandler struct {
	mu     sync.Mutex
	events []*Event
	cids   []string
	done   chan struct{}
	want   int
}

func (h *collectingHandler) Handle(ctx context.Context, ev *Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.cids = append(h.cids, observability.CorrelationID(ctx))
	if len(h.events) == h.want {
		close(h.done)
	}
	return nil
}

func messageUpdate(id int64, from int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
			From:      &telegram.User{ID: from},
			Chat:      telegram.Chat{ID: from},
			Text:      text,
		},
	}
}

func TestRunner_DispatchesAndAdvancesOffset(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{updates: []telegram.Update{messageUpdate(10, 1, "/start"), {UpdateID: 11}}},
		{updates: []telegram.Update{messageUpdate(12, 2, "/list")}},
	}}
	handler := &collectingHandler{done: make(chan struct{}), want: 2}
	runner := NewRunner(RunnerOptions{Source: source, Handler: handler, Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("events were not dispatched")
	}
	cancel()
	require.NoError(t, <-errCh)

	offsets := source.seenOffsets()
	require.GreaterOrEqual(t, len(offsets), 3)
	assert.Equal(t, []int64{0, 12, 13}, offsets[:3])

	ids := []core.Identity{handler.events[0].Identity, handler.events[1].Identity}
	assert.ElementsMatch(t, []core.Identity{1, 2}, ids)
	assert.NotEqual(t, handler.cids[0], handler.cids[1], "each event gets its own correlation id")
	assert.False(t, runner.LastPoll().IsZero())
}

func TestRunner_StampsBotUsername(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{updates: []telegram.Update{messageUpdate(1, 1, "/start@OtherBot")}},
	}}
	handler := &collectingHandler{done: make(chan struct{}), want: 1}
	runner := NewRunner(RunnerOptions{Source: source, Handler: handler, BotUsername: "wg_admin_bot"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
	cancel()
	require.NoError(t, <-errCh)

	require.Len(t, handler.events, 1)
	assert.Equal(t, "wg_admin_bot", handler.events[0].BotUsername)
	name, _ := handler.events[0].Command()
	assert.Empty(t, name)
}

func TestRunner_BacksOffOnNetworkErrors(t *testing.T) {
	netErr := &telegram.NetworkError{Method: "getUpdates", Err: errors.New("reset")}
	source := &scriptedSource{results: []pollResult{{err: netErr}, {err: netErr}, {err: netErr}}}

	var mu sync.Mutex
	var slept []time.Duration
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(RunnerOptions{
		Source:  source,
		Handler: &collectingHandler{done: make(chan struct{})},
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			slept = append(slept, d)
			if len(slept) == 3 {
				cancel()
			}
			return ctx.Err()
		},
	})

	require.NoError(t, runner.Run(ctx))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, slept)
	assert.True(t, runner.LastPoll().IsZero())
}

func TestRunner_StopsOnAuthFailure(t *testing.T) {
	credErr := &telegram.APIError{Method: "getUpdates", StatusCode: 401, Description: "Unauthorized"}
	source := &scriptedSource{results: []pollResult{{err: credErr}}}
	runner := NewRunner(RunnerOptions{Source: source, Handler: &collectingHandler{done: make(chan struct{})}})

	err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Same(t, credErr, err)
}

func TestRunner_FatalFromHandler(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{updates: []telegram.Update{messageUpdate(1, 1, "/start")}},
	}}
	credErr := errors.New("credential revoked")

	var runner *Runner
	handler := Handler(func(ctx context.Context, ev *Event) error {
		runner.Fatal(credErr)
		return nil
	})
	runner = NewRunner(RunnerOptions{Source: source, Handler: handler})

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, credErr)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after Fatal")
	}
}
