package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterEnforcesPerSecondLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryLimiter(clock, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "third attempt in the same second is rejected")
}

func TestMemoryLimiterResetsAfterWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryLimiter(clock, 1)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Second)
	ok, err = limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterIsPerCompetitor(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryLimiter(clock, 1)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Competitor 2 has their own counter.
	ok, err = limiter.Allow(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}
