package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound requests
type Limiter interface {
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
}

// New returns a token bucket limiter, or an unlimited one when
// requestsPerSecond is not positive.
func New(requestsPerSecond float64, burst int) Limiter {
	if requestsPerSecond <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(requestsPerSecond, burst)
}

// TokenBucket implements a token bucket rate limiter on top of x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter refilling requestsPerSecond tokens per second
// up to burst
func NewTokenBucket(requestsPerSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited never limits
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
