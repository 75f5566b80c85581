// -- internal/poll/poll.go --

// Package poll provides the single cancellable poll-with-timeout primitive
// shared by every component that waits on document state.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the deadline elapses before the probe succeeds.
var ErrTimeout = errors.New("poll: timed out")

// Probe inspects the watched state once. Returning done=true ends the wait
// successfully; a non-nil error aborts it immediately.
type Probe func(ctx context.Context) (done bool, err error)

// Until runs probe immediately, then at every interval (or wake signal) until
// it reports done, the timeout elapses, or ctx is cancelled. A nil wake
// channel is valid; the loop then paces purely on the interval.
//
// Returns nil on success, ErrTimeout on deadline, ctx.Err() on cancellation,
// or the probe's own error.
func Until(ctx context.Context, timeout, interval time.Duration, wake <-chan struct{}, probe Probe) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
			// A mutation signal short-circuits the interval wait so the
			// next probe sees the change promptly.
		}
	}
}

// Sleep blocks for d or until ctx is cancelled, returning ctx.Err() in the
// latter case. It is the ctx-aware replacement for time.Sleep at the loop's
// suspension points.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
