package browser

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Condition is evaluated by Poll. Returning true stops polling; a non-nil
// error aborts it.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond immediately and then at most once per interval until it
// reports true, returns an error, or ctx is done. On expiry it returns the
// context error so callers can tell timeouts from cancellation.
func Poll(ctx context.Context, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait refuses early when the next slot falls past the deadline.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return context.DeadlineExceeded
		}
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
