package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/engine"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
)

const (
	minPollBackoff = time.Second
	maxPollBackoff = 30 * time.Second

	defaultPollTimeout   = 25 * time.Second
	defaultSweepInterval = 5 * time.Minute
)

// UpdateSource long-polls for updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// EventHandler processes one inbound event. *Pipeline implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev *Event) error
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Source      UpdateSource
	Handler     EventHandler
	Workers     int
	PollTimeout time.Duration
	Logger      observability.Logger
	// BotUsername is stamped on every event so group commands for other
	// bots are ignored.
	BotUsername string

	// Limiter, when set, is swept of idle identities every SweepInterval.
	Limiter       engine.Limiter
	SweepInterval time.Duration

	// Sleep waits between failed polls. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Runner polls the provider and fans events out to a bounded worker pool.
type Runner struct {
	opts   RunnerOptions
	logger observability.Logger

	lastPoll atomic.Int64
	fatalMu  sync.Mutex
	fatal    error
	cancel   context.CancelFunc
}

// NewRunner returns a runner for opts.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Runner{opts: opts, logger: observability.NewRedactingLogger(opts.Logger)}
}

// LastPoll returns the time of the last successful poll, zero before the
// first.
func (r *Runner) LastPoll() time.Time {
	nanos := r.lastPoll.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// PollTimeout returns the configured long-poll timeout.
func (r *Runner) PollTimeout() time.Duration {
	return r.opts.PollTimeout
}

// Fatal stops the runner; Run returns err.
func (r *Runner) Fatal(err error) {
	r.fatalMu.Lock()
	defer r.fatalMu.Unlock()
	if r.fatal == nil {
		r.fatal = err
	}
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) fatalErr() error {
	r.fatalMu.Lock()
	defer r.fatalMu.Unlock()
	return r.fatal
}

// Run polls until ctx ends or a fatal error occurs, then waits for in-flight
// events. It returns nil on a clean shutdown.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.fatalMu.Lock()
	r.cancel = cancel
	pending := r.fatal
	r.fatalMu.Unlock()
	if pending != nil {
		return pending
	}

	events := make(chan *Event)
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, events)
		}()
	}

	if r.opts.Limiter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.sweep(ctx)
		}()
	}

	r.logger.Info("Bot runner started",
		zap.Int("workers", r.opts.Workers),
		zap.Duration("poll_timeout", r.opts.PollTimeout))

	r.poll(ctx, events)
	close(events)
	wg.Wait()

	r.logger.Info("Bot runner stopped")
	return r.fatalErr()
}

func (r *Runner) poll(ctx context.Context, events chan<- *Event) {
	var offset int64
	backoff := minPollBackoff

	for ctx.Err() == nil {
		updates, err := r.opts.Source.GetUpdates(ctx, offset, r.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			kind, hint := Classify(err)
			if kind == KindProviderAuthFailure {
				r.logger.Error("Bot credential rejected, stopping", zap.Error(err))
				r.Fatal(err)
				return
			}

			wait := backoff
			if kind == KindProviderRateLimited && hint > wait {
				wait = hint
			}
			r.logger.Warn("Polling failed",
				zap.String("kind", string(kind)),
				zap.Duration("wait", wait),
				zap.Error(err))
			if r.opts.Sleep(ctx, wait) != nil {
				return
			}
			backoff *= 2
			if backoff > maxPollBackoff {
				backoff = maxPollBackoff
			}
			continue
		}

		backoff = minPollBackoff
		r.lastPoll.Store(time.Now().UnixNano())

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			ev, ok := EventFromUpdate(update)
			if !ok {
				continue
			}
			ev.BotUsername = r.opts.BotUsername
			metrics.RecordEvent(string(ev.Kind))
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runner) work(ctx context.Context, events <-chan *Event) {
	for ev := range events {
		ectx := observability.WithCorrelationID(ctx, observability.NewCorrelationID())
		if err := r.opts.Handler.Handle(ectx, ev); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Event handler returned error",
				zap.String("identity", ev.Identity.String()),
				zap.Error(err))
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := r.opts.Limiter.Sweep(now)
			tracked := len(r.opts.Limiter.Snapshot(now))
			metrics.SetTrackedIdentities(tracked)
			if removed > 0 {
				r.logger.Debug("Swept idle rate limit state",
					zap.Int("removed", removed),
					zap.Int("tracked", tracked))
			}
		}
	}
}
