package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsUpToCeiling(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Attempt(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, retryAfter, err := limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)

	allowed, _, err := limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Attempt(context.Background(), "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed, "a different IP has its own window")
}

func TestMemoryLimiterPrunesExpiredAttempts(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Attempt(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, _, err := limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)

	// Advance past the window; old attempts are pruned lazily on the next read.
	current = current.Add(2 * time.Minute)
	allowed, _, err = limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiterSweepsAbandonedKeys(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	// One-shot visitors that never come back.
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		allowed, _, err := limiter.Attempt(context.Background(), ip)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	current = current.Add(2 * time.Minute)
	allowed, _, err := limiter.Attempt(context.Background(), "10.0.0.4")
	require.NoError(t, err)
	require.True(t, allowed)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.attempts, 1, "stale keys should be swept, not kept forever")
	assert.Contains(t, limiter.attempts, "10.0.0.4")
}

func TestMemoryLimiterRetryAfterShrinksOverTime(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	allowed, _, err := limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.True(t, allowed)

	_, first, err := limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	current = current.Add(30 * time.Second)
	_, second, err := limiter.Attempt(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Less(t, second, first)
}
