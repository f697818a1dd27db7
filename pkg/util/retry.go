package util

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// Retry calls fn up to retries+1 times. The wait between attempts starts at
// delay and doubles after every failure. The last error is returned.
// Cancelling ctx aborts the wait and returns ctx.Err().
func Retry(ctx context.Context, retries int, delay time.Duration, fn func(ctx context.Context) error) error {
	if retries < 0 {
		retries = 0
	}
	b := Doubling(delay, delay<<uint(retries))

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == retries {
			break
		}

		t := time.NewTimer(b.ForAttempt(float64(attempt)))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

// Doubling returns a jitter-free backoff starting at first and doubling up to limit.
func Doubling(first, limit time.Duration) *backoff.Backoff {
	return &backoff.Backoff{Min: first, Max: limit, Factor: 2}
}
