package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/engine"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// RateLimitGate denies events from identities over their command budget.
type RateLimitGate struct {
	limiter  engine.Limiter
	notifier Notifier
	logger   observability.Logger
	clock    func() time.Time
}

// NewRateLimitGate wraps limiter. notifier and clock may be nil.
func NewRateLimitGate(limiter engine.Limiter, notifier Notifier, logger observability.Logger, clock func() time.Time) *RateLimitGate {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimitGate{
		limiter:  limiter,
		notifier: notifier,
		logger:   observability.NewRedactingLogger(logger),
		clock:    clock,
	}
}

// Limiter exposes the underlying limiter for reporting.
func (g *RateLimitGate) Limiter() engine.Limiter {
	return g.limiter
}

// Process implements Middleware. Denials are a normal outcome, not an error.
func (g *RateLimitGate) Process(ctx context.Context, ev *Event, next Handler) error {
	decision := g.limiter.Admit(ev.Identity, g.clock())
	if decision.Allowed {
		return next(ctx, ev)
	}

	metrics.RecordDenial(metrics.DenialRateLimited)
	g.logger.Warn("Rate limit exceeded",
		zap.String("identity", ev.Identity.String()),
		zap.String("command", ev.AuditCommand()),
		zap.Duration("retry_after", decision.RetryAfter),
		zap.Int("limit", decision.Limit),
		zap.Bool("new_violation", decision.Violation),
		zap.String("correlation_id", observability.CorrelationID(ctx)))

	if g.notifier != nil {
		g.notifier.Notify(ctx, ev, RateLimitedMessage(decision.RetryAfter))
	}
	return nil
}

// RateLimitedMessage is the throttling notice for a denial.
func RateLimitedMessage(retryAfter time.Duration) string {
	return fmt.Sprintf("⏰ Too many commands. Please wait %d s before trying again.", ceilSeconds(retryAfter))
}
