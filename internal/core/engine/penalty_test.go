package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// violate admits at now until the limiter records a violation and returns it.
func violate(t *testing.T, limiter *ProgressivePenaltyLimiter, now time.Time) Decision {
	t.Helper()
	for i := 0; i < 100; i++ {
		d := limiter.Admit(42, now)
		if !d.Allowed {
			require.True(t, d.Violation, "expected a fresh violation at %s", now)
			return d
		}
	}
	t.Fatalf("no violation recorded at %s", now)
	return Decision{}
}

func TestProgressivePenaltyLimiterEscalation(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(3))

	expected := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		300 * time.Second,
		300 * time.Second,
	}

	now := epoch
	for i, want := range expected {
		d := violate(t, limiter, now)
		assert.Equal(t, want, d.RetryAfter, "violation %d", i+1)

		snap := limiter.Snapshot(now)
		require.Len(t, snap, 1)
		assert.Equal(t, i+1, snap[0].Violations)
		assert.Equal(t, want, snap[0].PenaltyUntil.Sub(snap[0].LastViolation))

		now = snap[0].PenaltyUntil
	}
}

func TestProgressivePenaltyLimiterTightensBudget(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(3))

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Admit(42, epoch).Allowed)
	}
	first := limiter.Admit(42, epoch)
	require.False(t, first.Allowed)
	assert.Equal(t, 3, first.Limit)

	// Window empties after 60s; the budget is now 2.
	later := epoch.Add(2 * time.Minute)
	require.True(t, limiter.Admit(42, later).Allowed)
	require.True(t, limiter.Admit(42, later).Allowed)
	second := limiter.Admit(42, later)
	require.False(t, second.Allowed)
	assert.Equal(t, 2, second.Limit)
	assert.Equal(t, time.Minute, second.RetryAfter)
}

func TestProgressivePenaltyLimiterPenaltyDoesNotTouchCounters(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(1))

	require.True(t, limiter.Admit(42, epoch).Allowed)
	require.True(t, limiter.Admit(42, epoch).Violation)

	for i := 1; i < 30; i++ {
		d := limiter.Admit(42, epoch.Add(time.Duration(i)*time.Second))
		require.False(t, d.Allowed)
		require.False(t, d.Violation)
		assert.Equal(t, time.Duration(30-i)*time.Second, d.RetryAfter)
	}

	snap := limiter.Snapshot(epoch.Add(29 * time.Second))
	require.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Violations)
	assert.Equal(t, 1, snap[0].InWindow)
}

func TestProgressivePenaltyLimiterCleanReset(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(3))

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Admit(42, epoch).Allowed)
	}
	violation := limiter.Admit(42, epoch)
	require.True(t, violation.Violation)

	later := epoch.Add(86401 * time.Second)
	for i := 0; i < 3; i++ {
		d := limiter.Admit(42, later)
		require.True(t, d.Allowed, "admission %d", i+1)
		assert.Equal(t, 3, d.Limit)
	}

	snap := limiter.Snapshot(later)
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].Violations)
}

func TestProgressivePenaltyLimiterNoResetBeforeCleanPeriod(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(3))

	for i := 0; i < 4; i++ {
		limiter.Admit(42, epoch)
	}

	later := epoch.Add(86399 * time.Second)
	d := limiter.Admit(42, later)
	require.True(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)
}

func TestProgressivePenaltyLimiterBurstScenario(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(3))

	for i := 1; i <= 10; i++ {
		d := limiter.Admit(42, epoch)
		switch {
		case i <= 3:
			assert.True(t, d.Allowed, "command %d", i)
		case i == 4:
			assert.False(t, d.Allowed)
			assert.True(t, d.Violation)
			assert.Equal(t, 30*time.Second, d.RetryAfter)
		default:
			assert.False(t, d.Allowed, "command %d", i)
			assert.False(t, d.Violation, "command %d", i)
			assert.Equal(t, 30*time.Second, d.RetryAfter, "command %d", i)
		}
	}
}

func TestProgressivePenaltyLimiterSweep(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(1))

	limiter.Admit(1, epoch)
	limiter.Admit(2, epoch)
	limiter.Admit(2, epoch)

	// Identity 2 still has violation history inside the clean period.
	assert.Equal(t, 1, limiter.Sweep(epoch.Add(10*time.Minute)))
	snap := limiter.Snapshot(epoch.Add(10 * time.Minute))
	require.Len(t, snap, 1)
	assert.EqualValues(t, 2, snap[0].Identity)

	assert.Equal(t, 1, limiter.Sweep(epoch.Add(25*time.Hour)))
	assert.Empty(t, limiter.Snapshot(epoch.Add(25*time.Hour)))
}

func TestProgressivePenaltyLimiterConcurrentAdmission(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(DefaultPenaltyPolicy(5))

	var admitted, violations atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := limiter.Admit(9, epoch)
			if d.Allowed {
				admitted.Add(1)
			}
			if d.Violation {
				violations.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), admitted.Load())
	assert.Equal(t, int64(1), violations.Load())
}

func TestPenaltyPolicyPenalty(t *testing.T) {
	p := DefaultPenaltyPolicy(10).normalized()
	assert.Equal(t, 30*time.Second, p.penalty(1))
	assert.Equal(t, 60*time.Second, p.penalty(2))
	assert.Equal(t, 300*time.Second, p.penalty(6))
	assert.Equal(t, 300*time.Second, p.penalty(60))
}

func TestProgressivePenaltyLimiterPartialPolicyEscalates(t *testing.T) {
	limiter := NewProgressivePenaltyLimiter(PenaltyPolicy{BaseLimit: 1})

	now := epoch
	for i, want := range []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second} {
		d := violate(t, limiter, now)
		assert.Equal(t, want, d.RetryAfter, "violation %d", i+1)
		now = now.Add(d.RetryAfter)
	}
}

func TestPenaltyPolicyNormalizedDefaults(t *testing.T) {
	p := PenaltyPolicy{BaseLimit: 4}.normalized()
	assert.Equal(t, DefaultPenaltyPolicy(4), p)

	p = PenaltyPolicy{BaseLimit: 4, BasePenalty: time.Minute, MaxPenalty: time.Second}.normalized()
	assert.Equal(t, time.Minute, p.MaxPenalty)
}
