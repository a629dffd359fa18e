package util

import (
	"context"
	"time"
)

// maxRetryDelay caps the exponential backoff. Provider windows span a year
// of bars; pausing longer than this between attempts just starves the
// ingestion queue.
const maxRetryDelay = 30 * time.Second

// Retry runs fn until it succeeds or maxAttempts is exhausted, doubling the
// pause between attempts from baseDelay up to maxRetryDelay. The provider
// fetch path is the main caller: a window that still fails after the last
// attempt gets its error back so the fetch task can log it and move to the
// next window. Cancelling the context ends the wait early with ctx.Err().
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := baseDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
