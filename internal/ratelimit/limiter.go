// Package ratelimit implements fixed-window request limiting per client key.
package ratelimit

import (
	"context"
	"time"
)

// Limiter admits or rejects a request for key. Every call counts against the
// window, including rejected ones.
type Limiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// Remaining returns how many more calls the window admits.
func (d Decision) Remaining() int {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// RetryAfter returns the time until the window resets relative to now,
// never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Clock returns the current time; tests substitute it.
type Clock func() time.Time
