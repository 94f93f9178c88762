package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/minibank/pkg/config"
)

func TestMemoryLimiter_Window(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "k", 2, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Minute, result.RetryAfter(now))

	now = now.Add(61 * time.Second)
	result, err = limiter.Check(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	now := time.Now()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = limiter.Check(ctx, "old", 5, time.Minute)
	now = now.Add(time.Hour)
	_, _ = limiter.Check(ctx, "fresh", 5, time.Minute)

	removed, err := limiter.Sweep(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Contains(t, limiter.hits, "fresh")
	assert.NotContains(t, limiter.hits, "old")
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{Limit: 10, Whitelist: []int64{7}})

	assert.True(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(8))

	limit, window := rules.PerActor()
	assert.Equal(t, 10, limit)
	assert.Equal(t, time.Minute, window, "window defaults to a minute")
	assert.Equal(t, "chat:42", ChatKey(42))
}
