package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits requests per identifier within a sliding time window. It
// protects the process and the paid downstream APIs from request floods.
type Limiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		requests:    make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Check prunes timestamps outside the window, then admits the request if the
// identifier is under the limit. Admitted requests are recorded.
func (l *Limiter) Check(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.requests[identifier][:0]
	for _, ts := range l.requests[identifier] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.maxRequests {
		l.requests[identifier] = recent
		return false
	}

	l.requests[identifier] = append(recent, now)
	return true
}
