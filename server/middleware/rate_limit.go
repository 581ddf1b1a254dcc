package middleware

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces operations per key, typically a course id, so bulk jobs
// do not starve interactive writers of the same aggregates.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	every  rate.Limit
	burst  int
}

// NewRateLimiter creates a limiter allowing perSecond operations per key with
// the given burst. A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limits: make(map[string]*rate.Limiter),
		every:  limit,
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.every, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// Allow checks if an operation is allowed for the given key right now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait blocks until an operation is allowed for key.
// Returns error if the context is cancelled first.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}
