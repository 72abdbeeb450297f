package engine

import (
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

// PenaltyPolicy configures the ProgressivePenaltyLimiter.
type PenaltyPolicy struct {
	BaseLimit   int
	Window      time.Duration
	BasePenalty time.Duration
	MaxPenalty  time.Duration
	CleanPeriod time.Duration
}

// DefaultPenaltyPolicy returns the stock policy: 30s doubling to 5m, forgiven
// after 24h without violations.
func DefaultPenaltyPolicy(baseLimit int) PenaltyPolicy {
	return PenaltyPolicy{
		BaseLimit:   baseLimit,
		Window:      DefaultWindow,
		BasePenalty: 30 * time.Second,
		MaxPenalty:  5 * time.Minute,
		CleanPeriod: 24 * time.Hour,
	}
}

func (p PenaltyPolicy) normalized() PenaltyPolicy {
	def := DefaultPenaltyPolicy(p.BaseLimit)
	if p.BaseLimit < 1 {
		p.BaseLimit = 1
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	if p.BasePenalty <= 0 {
		p.BasePenalty = def.BasePenalty
	}
	if p.MaxPenalty <= 0 {
		p.MaxPenalty = def.MaxPenalty
	}
	if p.MaxPenalty < p.BasePenalty {
		p.MaxPenalty = p.BasePenalty
	}
	if p.CleanPeriod <= 0 {
		p.CleanPeriod = def.CleanPeriod
	}
	return p
}

// penalty returns min(MaxPenalty, BasePenalty * 2^(violations-1)).
func (p PenaltyPolicy) penalty(violations int) time.Duration {
	d := p.BasePenalty
	for i := 1; i < violations; i++ {
		d *= 2
		if d >= p.MaxPenalty {
			return p.MaxPenalty
		}
	}
	if d > p.MaxPenalty {
		return p.MaxPenalty
	}
	return d
}

type penaltyState struct {
	commands      window
	violations    int
	lastViolation time.Time
	penaltyUntil  time.Time
}

// ProgressivePenaltyLimiter is a sliding-window limiter that locks out repeat
// offenders for exponentially longer periods and tightens their budget by one
// per violation.
type ProgressivePenaltyLimiter struct {
	policy PenaltyPolicy
	states *registry[penaltyState]
}

// NewProgressivePenaltyLimiter creates a limiter from policy.
func NewProgressivePenaltyLimiter(policy PenaltyPolicy) *ProgressivePenaltyLimiter {
	return &ProgressivePenaltyLimiter{
		policy: policy.normalized(),
		states: newRegistry[penaltyState](),
	}
}

// Admit evaluates one command from id at now.
func (l *ProgressivePenaltyLimiter) Admit(id core.Identity, now time.Time) Decision {
	var decision Decision
	l.states.with(id, func(s *penaltyState) {
		decision = l.admit(s, now)
	})
	return decision
}

func (l *ProgressivePenaltyLimiter) admit(s *penaltyState, now time.Time) Decision {
	p := l.policy

	// An active lockout short-circuits without touching window or counters.
	if now.Before(s.penaltyUntil) {
		return Decision{RetryAfter: s.penaltyUntil.Sub(now), Limit: l.effectiveLimit(s)}
	}

	if s.violations > 0 && now.Sub(s.lastViolation) > p.CleanPeriod {
		s.violations = 0
	}

	s.commands.prune(now, p.Window)
	limit := l.effectiveLimit(s)

	if s.commands.count() >= limit {
		s.violations++
		s.lastViolation = now
		s.penaltyUntil = now.Add(p.penalty(s.violations))
		return Decision{
			RetryAfter: s.penaltyUntil.Sub(now),
			Limit:      limit,
			Violation:  true,
		}
	}

	s.commands.add(now)
	return Decision{Allowed: true, Limit: limit}
}

func (l *ProgressivePenaltyLimiter) effectiveLimit(s *penaltyState) int {
	limit := l.policy.BaseLimit - s.violations
	if limit < 1 {
		return 1
	}
	return limit
}

// Snapshot returns per-identity state ordered by identity.
func (l *ProgressivePenaltyLimiter) Snapshot(now time.Time) []core.RateLimitSnapshot {
	out := make([]core.RateLimitSnapshot, 0)
	l.states.each(func(id core.Identity, s *penaltyState) {
		s.commands.prune(now, l.policy.Window)
		out = append(out, core.RateLimitSnapshot{
			Identity:      id,
			InWindow:      s.commands.count(),
			Violations:    s.violations,
			LastViolation: s.lastViolation,
			PenaltyUntil:  s.penaltyUntil,
		})
	})
	sortSnapshots(out)
	return out
}

// Sweep drops identities with an empty window, no active lockout and no
// violation history worth keeping.
func (l *ProgressivePenaltyLimiter) Sweep(now time.Time) int {
	return l.states.sweep(func(s *penaltyState) bool {
		s.commands.prune(now, l.policy.Window)
		if s.commands.count() > 0 || now.Before(s.penaltyUntil) {
			return false
		}
		return s.violations == 0 || now.Sub(s.lastViolation) > l.policy.CleanPeriod
	})
}
