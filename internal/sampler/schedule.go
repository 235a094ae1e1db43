package sampler

import (
	"context"
	"time"
)

// Every returns a fixed-rate schedule: the first tick is sent immediately,
// then one at start + k*interval. The channel is unbuffered, so a tick is
// only delivered once the receiver is ready. A receiver that falls behind
// gets the overdue ticks back to back; none are dropped or merged. The
// channel is closed when ctx is done.
func Every(ctx context.Context, interval time.Duration, now func() time.Time) <-chan time.Time {
	ch := make(chan time.Time)
	go func() {
		defer close(ch)

		next := now()
		for {
			select {
			case ch <- next:
			case <-ctx.Done():
				return
			}

			next = next.Add(interval)
			wait := next.Sub(now())
			if wait <= 0 {
				continue
			}
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
	return ch
}
