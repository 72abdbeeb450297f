package bot

import (
	"context"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// Retry policy defaults
const (
	DefaultMaxRetries   = 5
	DefaultInitialDelay = 2 * time.Second
	DefaultMaxDelay     = 30 * time.Second

	// rateLimitBuffer is added on top of a provider wait hint.
	rateLimitBuffer = time.Second
)

// RetryPolicy bounds the attempts of one outbound call.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns 5 attempts backing off from 2s to at most 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, InitialDelay: DefaultInitialDelay, MaxDelay: DefaultMaxDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 1 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// RetryingCaller runs outbound provider calls with bounded retries. It never
// returns an error: failures are logged and reported as ok=false.
type RetryingCaller struct {
	Policy RetryPolicy
	Logger observability.Logger
	// Sleep waits for d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryingCaller returns a caller using the real clock.
func NewRetryingCaller(policy RetryPolicy, logger observability.Logger) *RetryingCaller {
	return &RetryingCaller{
		Policy: policy.normalized(),
		Logger: observability.NewRedactingLogger(logger),
		Sleep:  sleepContext,
	}
}

// Do runs fn under the retry policy and reports whether it succeeded.
func (c *RetryingCaller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	_, ok := Call(ctx, c, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return ok
}

// Call runs fn under c's policy. Provider wait hints are honored with a one
// second buffer and do not grow the backoff; network and unexpected errors
// back off exponentially; permanent errors stop at once.
func Call[T any](ctx context.Context, c *RetryingCaller, op string, fn func(ctx context.Context) (T, error)) (T, bool) {
	var zero T

	policy := c.Policy.normalized()
	logger := c.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			metrics.RecordSendAttempt("success")
			if attempt > 1 {
				logger.Info("Outbound call succeeded after retry",
					zap.String("operation", op),
					zap.Int("attempt", attempt))
			}
			return result, true
		}
		lastErr = err

		kind, hint := Classify(err)
		if kind.Permanent() {
			metrics.RecordSendAttempt("permanent_failure")
			fields := []zap.Field{
				zap.String("operation", op),
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			}
			if kind == KindProviderAuthFailure {
				logger.Error("Outbound call rejected: bot credential invalid",
					append(fields, zap.String("severity", string(gferrors.SeverityCritical)))...)
			} else {
				logger.Warn("Outbound call failed permanently", fields...)
			}
			return zero, false
		}
		metrics.RecordSendAttempt("retry")

		if attempt == policy.MaxRetries {
			break
		}

		var wait time.Duration
		if kind == KindProviderRateLimited && hint > 0 {
			wait = hint + rateLimitBuffer
		} else {
			wait = delay
			delay *= 2
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}

		logger.Debug("Retrying outbound call",
			zap.String("operation", op),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		if err := sleep(ctx, wait); err != nil {
			logger.Warn("Outbound call abandoned",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			return zero, false
		}
	}

	metrics.RecordSendAttempt("exhausted")
	logger.Error("Outbound call failed after retries",
		zap.String("operation", op),
		zap.Int("attempts", policy.MaxRetries),
		zap.Error(lastErr))
	return zero, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
