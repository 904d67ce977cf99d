package scraper

import (
	"context"
	"math/rand/v2"
	"time"
)

// Throttle sleeps a uniformly random interval between Min and Max.
type Throttle struct {
	Min time.Duration
	Max time.Duration
}

// NewThrottle swaps the bounds if they are given in the wrong order.
func NewThrottle(minDelay, maxDelay time.Duration) *Throttle {
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return &Throttle{Min: minDelay, Max: maxDelay}
}

// Wait blocks for the next delay or until ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	d := t.Next()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns a random delay within the configured range.
func (t *Throttle) Next() time.Duration {
	if t.Min >= t.Max {
		return t.Min
	}
	return t.Min + time.Duration(rand.Int64N(int64(t.Max-t.Min)))
}
