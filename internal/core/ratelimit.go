package core

import "time"

// RateLimitSnapshot is a read-only view of one identity's limiter state.
type RateLimitSnapshot struct {
	Identity      Identity
	InWindow      int
	Violations    int
	LastViolation time.Time
	PenaltyUntil  time.Time
}

// Penalized reports whether the identity is locked out at now.
func (s RateLimitSnapshot) Penalized(now time.Time) bool {
	return now.Before(s.PenaltyUntil)
}
