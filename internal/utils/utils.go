package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// WaitFor sleeps for the given duration unless the context is canceled first.
// Returns the context error on cancellation so callers can abort retry loops.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
