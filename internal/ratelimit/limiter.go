package ratelimit

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter throttles password attempts per client key (IP address).
// Attempt reports whether the caller is under the ceiling; when allowed the
// attempt is recorded before the caller checks the password, so successful
// and failed attempts both count against the window. When rejected,
// retryAfter indicates how long until the oldest attempt leaves the window.
type AttemptLimiter interface {
	Attempt(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// MemoryLimiter keeps attempt timestamps per key in unshared process memory.
// State resets on process restart, and in a multi-process deployment each
// process enforces its own quota independently; deployments that need a
// shared ceiling should use the Redis-backed limiter instead.
type MemoryLimiter struct {
	mu        sync.Mutex
	attempts  map[string][]time.Time
	max       int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryLimiter allows max attempts per key within a trailing window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Attempt prunes entries older than the window, rejects when the ceiling is
// reached, and otherwise records the attempt.
func (l *MemoryLimiter) Attempt(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Keys are normally pruned on access, but an IP that never returns would
	// stay in the map forever. A full sweep at most once per window keeps the
	// map bounded by active clients.
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := l.attempts[key][:0]
	for _, ts := range l.attempts[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.max {
		l.attempts[key] = recent
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter, nil
	}

	l.attempts[key] = append(recent, now)
	return true, 0, nil
}

func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, timestamps := range l.attempts {
		recent := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				recent = append(recent, ts)
			}
		}
		if len(recent) == 0 {
			delete(l.attempts, key)
			continue
		}
		l.attempts[key] = recent
	}
}
