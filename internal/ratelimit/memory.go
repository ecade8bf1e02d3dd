package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleTTL       = 10 * time.Minute
	sweepInterval = time.Minute
)

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket keyed by caller. It is used
// when Redis is disabled and only limits callers hitting this instance.
type MemoryLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*memoryEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter allows requestsPerMinute sustained with an extra burst
func NewMemoryLimiter(requestsPerMinute, burst int) *MemoryLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	size := requestsPerMinute + burst
	if size <= 0 {
		size = 1
	}
	return &MemoryLimiter{
		limiters: make(map[string]*memoryEntry),
		limit:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:    size,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
// Returns (allowed, remaining, resetTime, error) like the Redis limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &memoryEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	reset := now
	if tokens < 1 {
		missing := 1 - tokens
		reset = now.Add(time.Duration(missing / float64(l.limit) * float64(time.Second)))
	}

	return allowed, remaining, reset, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > idleTTL {
			delete(l.limiters, key)
		}
	}
}
