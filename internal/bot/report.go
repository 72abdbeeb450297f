package bot

import (
	"sync"
	"time"
)

// ErrorStats is a point-in-time copy of an ErrorReport.
type ErrorStats struct {
	Total      int
	ByKind     map[ErrorKind]int
	MostCommon ErrorKind
	Since      time.Time
}

// ErrorReport counts classified failures per kind until explicitly reset.
type ErrorReport struct {
	mu     sync.Mutex
	counts map[ErrorKind]int
	total  int
	since  time.Time
	now    func() time.Time
}

// NewErrorReport returns an empty report.
func NewErrorReport() *ErrorReport {
	r := &ErrorReport{now: time.Now}
	r.Reset()
	return r
}

// Record counts one failure of kind.
func (r *ErrorReport) Record(kind ErrorKind) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind]++
	r.total++
}

// Stats returns a copy of the counters. Ties for MostCommon resolve in
// AllKinds order.
func (r *ErrorReport) Stats() ErrorStats {
	if r == nil {
		return ErrorStats{ByKind: map[ErrorKind]int{}}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := ErrorStats{Total: r.total, ByKind: make(map[ErrorKind]int, len(r.counts)), Since: r.since}
	best := 0
	for _, kind := range AllKinds {
		count := r.counts[kind]
		if count == 0 {
			continue
		}
		stats.ByKind[kind] = count
		if count > best {
			best = count
			stats.MostCommon = kind
		}
	}
	return stats
}

// Reset clears all counters.
func (r *ErrorReport) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = make(map[ErrorKind]int)
	r.total = 0
	r.since = r.now()
}
