package escalate

import (
	"sync"
	"time"
)

// RateLimiter bounds the number of decisions forwarded to the human-review
// queue per time window. It is the one piece of state shared across shards
// besides the ledger, so the critical section is a single count-and-append.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	times []time.Time

	now func() time.Time
}

// NewRateLimiter allows limit forwards per window. A non-positive limit
// disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether another forward fits in the current window and
// records it if so.
func (r *RateLimiter) Allow() bool {
	if r.limit <= 0 {
		return true
	}

	now := r.now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	keep := r.times[:0]
	for _, t := range r.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	r.times = keep

	if len(r.times) >= r.limit {
		return false
	}
	r.times = append(r.times, now)
	return true
}
