package catalog

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests evenly with no bursting.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	interval := time.Second / time.Duration(requestsPerSecond)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (r *RateLimiter) WaitTurn(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
