package fulfillment

import (
	"context"
	"time"

	"esimsync/internal/apperr"
)

// poll calls fn until it succeeds, returns a non-retryable error or the
// attempt budget is spent. The last error is returned on exhaustion.
func poll(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !apperr.Retryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		if sErr := sleepOrDone(ctx, delay); sErr != nil {
			return apperr.E(apperr.KindProviderTransient, "poll", sErr)
		}
	}
	return err
}

// sleepOrDone waits for the duration or returns early on context cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
