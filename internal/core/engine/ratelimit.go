package engine

import (
	"sync"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

// DefaultWindow is the trailing interval both limiters count commands over.
const DefaultWindow = 60 * time.Second

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	// Limit is the effective per-window budget the check was evaluated against.
	Limit int
	// Violation is set when this check recorded a new violation.
	Violation bool
}

// Limiter admits or rejects commands per identity.
type Limiter interface {
	Admit(id core.Identity, now time.Time) Decision
	Snapshot(now time.Time) []core.RateLimitSnapshot
	Sweep(now time.Time) int
}

// window is an ordered sequence of admission timestamps.
type window struct {
	stamps []time.Time
}

// prune drops the prefix of timestamps older than size at now.
func (w *window) prune(now time.Time, size time.Duration) {
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) > size {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func (w *window) count() int {
	return len(w.stamps)
}

func (w *window) add(now time.Time) {
	w.stamps = append(w.stamps, now)
}

// retryAfter returns how long until the oldest timestamp leaves the window.
func (w *window) retryAfter(now time.Time, size time.Duration) time.Duration {
	if len(w.stamps) == 0 {
		return 0
	}
	wait := w.stamps[0].Add(size).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// registry owns per-identity state. Each entry carries its own lock so checks
// for different identities never contend; the map lock only guards lookups.
type registry[T any] struct {
	mu    sync.Mutex
	items map[core.Identity]*entry[T]
}

type entry[T any] struct {
	mu    sync.Mutex
	dead  bool
	state T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[core.Identity]*entry[T])}
}

// with runs fn while holding the identity's lock.
func (r *registry[T]) with(id core.Identity, fn func(state *T)) {
	for {
		r.mu.Lock()
		e, ok := r.items[id]
		if !ok {
			e = &entry[T]{}
			r.items[id] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.dead {
			// Swept between lookup and lock; fetch the replacement.
			e.mu.Unlock()
			continue
		}
		fn(&e.state)
		e.mu.Unlock()
		return
	}
}

// sweep removes entries for which idle returns true.
func (r *registry[T]) sweep(idle func(state *T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.items {
		e.mu.Lock()
		if idle(&e.state) {
			e.dead = true
			delete(r.items, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// each visits every entry under its lock.
func (r *registry[T]) each(fn func(id core.Identity, state *T)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.items {
		e.mu.Lock()
		fn(id, &e.state)
		e.mu.Unlock()
	}
}
