package agent

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles model calls process-wide.
type RateLimiter struct {
	limiter *rate.Limiter // nil = unlimited
}

// NewRateLimiter allows ratePerMinute calls per minute with bursts of
// maxBurst. A non-positive rate disables throttling.
func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	if ratePerMinute <= 0 {
		return &RateLimiter{}
	}
	if maxBurst <= 0 {
		maxBurst = 10
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerMinute/60.0), maxBurst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limiter == nil {
		return ctx.Err()
	}
	return rl.limiter.Wait(ctx)
}
