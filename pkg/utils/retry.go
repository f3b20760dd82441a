package utils

import (
	"context"
	"time"

	pkgerrors "atlas-graph/pkg/errors"
)

// RetryOnConflict runs fn until it succeeds, fails with a non-retryable
// error, or exhausts the attempt budget. The delay doubles after each
// conflict so competing writers back off from each other. fn must reload
// any state it mutates: a conflict means the stored version moved on.
func RetryOnConflict(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !pkgerrors.IsRetryable(err) {
			return err
		}
	}

	return err
}
