package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/engine"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

func tracing(name string, trace *[]string) Middleware {
	return MiddlewareFunc(func(ctx context.Context, ev *Event, next Handler) error {
		*trace = append(*trace, name+":in")
		err := next(ctx, ev)
		*trace = append(*trace, name+":out")
		return err
	})
}

func TestPipeline_FixedOrder(t *testing.T) {
	var trace []string
	handler := func(ctx context.Context, ev *Event) error {
		trace = append(trace, "handler")
		return nil
	}

	// Field order in the literal does not matter; Stages decides.
	p := NewPipeline(handler, Stages{
		Audit:     tracing("audit", &trace),
		RateLimit: tracing("ratelimit", &trace),
		Auth:      tracing("auth", &trace),
		Errors:    tracing("errors", &trace),
	})
	require.NoError(t, p.Handle(context.Background(), messageEvent(1, "/start")))

	assert.Equal(t, []string{
		"errors:in", "auth:in", "ratelimit:in", "audit:in",
		"handler",
		"audit:out", "ratelimit:out", "auth:out", "errors:out",
	}, trace)
}

func TestPipeline_ShortCircuit(t *testing.T) {
	called := false
	stop := MiddlewareFunc(func(ctx context.Context, ev *Event, next Handler) error { return nil })

	p := NewPipeline(func(ctx context.Context, ev *Event) error {
		called = true
		return nil
	}, Stages{Auth: stop})

	require.NoError(t, p.Handle(context.Background(), messageEvent(1, "/start")))
	assert.False(t, called)
}

func TestPipeline_RequestContext(t *testing.T) {
	var seen *RequestContext
	p := NewPipeline(func(ctx context.Context, ev *Event) error {
		seen = RequestFrom(ctx)
		assert.Equal(t, seen.CorrelationID, observability.CorrelationID(ctx))
		return nil
	}, Stages{})

	ctx := observability.WithCorrelationID(context.Background(), "cid-123")
	require.NoError(t, p.Handle(ctx, messageEvent(5, "/start")))
	require.NotNil(t, seen)
	assert.Equal(t, core.Identity(5), seen.Identity)
	assert.Equal(t, "cid-123", seen.CorrelationID)
	assert.Nil(t, seen.Profile)
	assert.False(t, seen.IsAdmin())
	assert.GreaterOrEqual(t, seen.Elapsed(), time.Duration(0))
}

// Identity 42 is the non-admin second entry of a two-entry allow-list and
// bursts ten commands in the same second against a budget of three.
func TestPipeline_EndToEndBurst(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	replier := &fakeReplier{}
	profiles := newFakeProfiles()
	sink := &fakeSink{}

	limiter := engine.NewProgressivePenaltyLimiter(engine.DefaultPenaltyPolicy(3))
	handled := 0
	p := NewPipeline(func(ctx context.Context, ev *Event) error {
		handled++
		return nil
	}, Stages{
		Errors: NewErrorClassifier(ClassifierOptions{Notifier: replier, Report: NewErrorReport()}),
		Auth: NewAuthorizationGate(GateOptions{
			AllowList: []core.Identity{7, 42},
			AdminID:   7,
			Profiles:  profiles,
			Notifier:  replier,
		}),
		RateLimit: NewRateLimitGate(limiter, replier, nil, fixedClock(now)),
		Audit:     NewAuditRecorder(nil, sink, nil),
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Handle(context.Background(), messageEvent(42, "/list")))
	}

	assert.Equal(t, 3, handled)
	assert.Len(t, sink.all(), 3, "denied events never reach the audit stage")

	texts := replier.noticeTexts()
	require.Len(t, texts, 7)
	for _, text := range texts {
		assert.Equal(t, RateLimitedMessage(30*time.Second), text)
	}

	snap := limiter.Snapshot(now)
	require.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Violations, "denials during the penalty add no violations")
	assert.Equal(t, now.Add(30*time.Second), snap[0].PenaltyUntil)

	for _, call := range profiles.calls {
		assert.False(t, call.isAdmin)
	}
}

// A failing handler is audited once as an error and yields exactly one
// user-visible message.
func TestPipeline_ErrorIsolation(t *testing.T) {
	replier := &fakeReplier{}
	sink := &fakeSink{}
	report := NewErrorReport()

	p := NewPipeline(func(ctx context.Context, ev *Event) error {
		return errors.New("handler bug")
	}, Stages{
		Errors:    NewErrorClassifier(ClassifierOptions{Notifier: replier, Report: report}),
		Auth:      NewAuthorizationGate(GateOptions{}),
		RateLimit: NewRateLimitGate(engine.NewSlidingWindowLimiter(10, time.Minute), replier, nil, nil),
		Audit:     NewAuditRecorder(nil, sink, nil),
	})

	require.NoError(t, p.Handle(context.Background(), messageEvent(9, "/status")))

	rows := sink.all()
	require.Len(t, rows, 1)
	assert.Equal(t, core.OutcomeError, rows[0].Outcome)
	assert.Equal(t, "/status", rows[0].Command)
	assert.Equal(t, "handler bug", rows[0].Error)

	assert.Equal(t, []string{UserMessage(KindUnexpected, 0)}, replier.noticeTexts())
	assert.Equal(t, 1, report.Stats().ByKind[KindUnexpected])
}

func TestPipeline_PanicIsolation(t *testing.T) {
	replier := &fakeReplier{}
	sink := &fakeSink{}

	p := NewPipeline(func(ctx context.Context, ev *Event) error {
		panic("boom")
	}, Stages{
		Errors: NewErrorClassifier(ClassifierOptions{Notifier: replier}),
		Audit:  NewAuditRecorder(nil, sink, nil),
	})

	assert.NotPanics(t, func() {
		require.NoError(t, p.Handle(context.Background(), messageEvent(9, "/status")))
	})

	rows := sink.all()
	require.Len(t, rows, 1)
	assert.Equal(t, core.OutcomeError, rows[0].Outcome)
	assert.Contains(t, rows[0].Error, "boom")
	assert.Len(t, replier.noticeTexts(), 1)
}
