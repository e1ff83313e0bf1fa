// Package retry provides backoff and retry logic for transient failures,
// used by the backing store when a batch commit hits a locked database.
//
//	r := retry.NewRetrier(&retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		Logger:      log,
//	})
//	err := r.Do(ctx, func(ctx context.Context) error {
//		return store.commitOnce(ctx)
//	})
//
// Cancellation and precondition errors are never retried.
package retry
