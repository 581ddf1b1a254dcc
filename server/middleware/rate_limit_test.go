package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstPerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("go-101"))
	assert.True(t, rl.Allow("go-101"))
	assert.False(t, rl.Allow("go-101"))

	// Keys are independent.
	assert.True(t, rl.Allow("rust-101"))
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("go-101"))
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	require.True(t, rl.Allow("go-101"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "go-101"))
}
