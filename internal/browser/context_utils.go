package browser

import (
	"context"
	"errors"
	"time"
)

// CombineContext derives a context from primary that is also cancelled when
// secondary is done. Values come from primary only; this matters for chromedp,
// whose target lives in the primary context. A deadline on secondary is
// carried over so expiry still reports context.DeadlineExceeded.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	var deadlineCancel context.CancelFunc = func() {}
	d, hasDeadline := secondary.Deadline()
	if hasDeadline {
		combined, deadlineCancel = context.WithDeadline(combined, d)
	}

	stop := context.AfterFunc(secondary, func() {
		// Expiry is left to the copied deadline so Err reports DeadlineExceeded.
		if hasDeadline && errors.Is(secondary.Err(), context.DeadlineExceeded) {
			return
		}
		cancel()
	})
	return combined, func() {
		stop()
		deadlineCancel()
		cancel()
	}
}

// valueOnlyContext keeps its parent's values but none of its cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context carrying ctx's values that is never cancelled.
// Cleanup that must outlive the caller runs on it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

// timeoutFrom returns the time left before ctx's deadline, or fallback when
// ctx has none. The result is never below one millisecond.
func timeoutFrom(ctx context.Context, fallback time.Duration) time.Duration {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
