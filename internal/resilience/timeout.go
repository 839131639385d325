package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrTimeout is returned when a call loses the timeout race.
var ErrTimeout = eris.New("resilience: call timed out")

// CallWithTimeout races fn against a timer; whichever resolves first wins.
//
// This is a fire-and-forget timeout, not cooperative cancellation: on a
// timer win only the local wait is abandoned; the goroutine running fn (and
// whatever remote work it started) continues until fn returns, at which point
// its result is discarded. Callers that need the remote side stopped must
// arrange that separately.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}

	// Buffered so the abandoned goroutine can complete and exit.
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(ctx)
		done <- outcome{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
