package realtime

import (
	"sync"
	"time"
)

// RateLimiter caps inbound frames per connection using a fixed window.
// Subscribers only send hello, so a coarse window is enough.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	started time.Time
	count   int
}

// NewRateLimiter falls back to the package defaults for non-positive inputs.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{limit: limit, window: window}
}

// Allow reports whether a frame received at now is within budget.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.IsZero() || !now.Before(r.started.Add(r.window)) {
		r.started = now
		r.count = 0
	}
	if r.count >= r.limit {
		return false
	}
	r.count++
	return true
}
