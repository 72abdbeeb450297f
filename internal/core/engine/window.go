package engine

import (
	"sort"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

// SlidingWindowLimiter admits at most Limit commands per identity in any
// trailing window. Denials never escalate.
type SlidingWindowLimiter struct {
	limit   int
	size    time.Duration
	buckets *registry[window]
}

// NewSlidingWindowLimiter creates a limiter. A zero size uses DefaultWindow.
func NewSlidingWindowLimiter(limit int, size time.Duration) *SlidingWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if size <= 0 {
		size = DefaultWindow
	}
	return &SlidingWindowLimiter{
		limit:   limit,
		size:    size,
		buckets: newRegistry[window](),
	}
}

// Allow reports whether a command from id at now is admitted.
func (l *SlidingWindowLimiter) Allow(id core.Identity, now time.Time) bool {
	return l.Admit(id, now).Allowed
}

// Admit prunes the identity's window, then admits and records now if the
// remaining count is below the limit. A denial leaves the window unchanged.
func (l *SlidingWindowLimiter) Admit(id core.Identity, now time.Time) Decision {
	decision := Decision{Limit: l.limit}
	l.buckets.with(id, func(w *window) {
		w.prune(now, l.size)
		if w.count() >= l.limit {
			decision.RetryAfter = w.retryAfter(now, l.size)
			return
		}
		w.add(now)
		decision.Allowed = true
	})
	return decision
}

// Snapshot returns the current window sizes ordered by identity.
func (l *SlidingWindowLimiter) Snapshot(now time.Time) []core.RateLimitSnapshot {
	out := make([]core.RateLimitSnapshot, 0)
	l.buckets.each(func(id core.Identity, w *window) {
		w.prune(now, l.size)
		out = append(out, core.RateLimitSnapshot{Identity: id, InWindow: w.count()})
	})
	sortSnapshots(out)
	return out
}

// Sweep drops identities whose window is empty at now.
func (l *SlidingWindowLimiter) Sweep(now time.Time) int {
	return l.buckets.sweep(func(w *window) bool {
		w.prune(now, l.size)
		return w.count() == 0
	})
}

func sortSnapshots(items []core.RateLimitSnapshot) {
	sort.Slice(items, func(i, j int) bool { return items[i].Identity < items[j].Identity })
}
