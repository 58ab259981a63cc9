package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*MemoryRateLimiter)(nil)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryRateLimiter is a per-key token bucket. Keys idle for more than
// idleTTL are evicted.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	done     chan struct{}
}

func NewMemoryRateLimiter(ratePerSec float64, burst int) *MemoryRateLimiter {
	l := &MemoryRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(ratePerSec),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		done:     make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (RateLimitResult, error) {
	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	r := e.limiter.Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return RateLimitResult{Allowed: false, RetryAfter: d}, nil
	}
	return RateLimitResult{Allowed: true}, nil
}

func (l *MemoryRateLimiter) Close() error {
	close(l.done)
	return nil
}

func (l *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-l.idleTTL)
			for key, e := range l.limiters {
				if e.lastSeen.Before(cutoff) {
					delete(l.limiters, key)
				}
			}
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}
