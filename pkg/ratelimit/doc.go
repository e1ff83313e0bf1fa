// Package ratelimit throttles outbound image requests.
//
// TokenBucket wraps golang.org/x/time/rate behind the Limiter interface so the
// download engine can wait on it with the operation's context; cancelling the
// operation (for example on timeout) releases the wait immediately.
//
// Usage:
//
//	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
