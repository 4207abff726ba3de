// Package poll provides the timeout-bounded wait used wherever the robot
// waits on hardware: a predicate re-checked at a fixed interval until it
// holds, a deadline passes, or the context is cancelled.
package poll

import (
	"context"
	"time"
)

// DefaultInterval is the pause between two predicate checks.
const DefaultInterval = 10 * time.Millisecond

// Until evaluates cond immediately and then every interval until it returns
// true (Until returns true), the timeout elapses or ctx is done (false).
// A non-positive timeout checks cond exactly once.
func Until(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	if timeout <= 0 {
		return false
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if cond() {
				return true
			}
			if !time.Now().Before(deadline) {
				return false
			}
		}
	}
}

// Remaining returns the time left before deadline, never negative.
func Remaining(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}
