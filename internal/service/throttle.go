package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// throttle enforces a minimum interval between successive calls.
// The first call is never delayed. A zero interval disables waiting.
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(interval time.Duration) *throttle {
	if interval <= 0 {
		return &throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (t *throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
