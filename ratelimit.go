package mailmerge

import (
	"context"
	"time"
)

// RateLimiter paces sends to a messages-per-minute budget. Waiting is
// synchronous: the caller sleeps inline until the next slot opens, so a
// run never spawns background work. A zero rate disables pacing.
type RateLimiter struct {
	interval time.Duration
	last     time.Time
}

// NewRateLimiter creates a limiter allowing perMinute sends per minute.
// Zero or negative disables pacing.
func NewRateLimiter(perMinute int) *RateLimiter {
	var interval time.Duration
	if perMinute > 0 {
		interval = time.Minute / time.Duration(perMinute)
	}
	return &RateLimiter{interval: interval}
}

// Interval returns the minimum spacing between sends, or zero when
// pacing is disabled.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Wait blocks until the next send slot opens or ctx is done. The first
// call never waits.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval <= 0 {
		return nil
	}

	now := time.Now()
	if !rl.last.IsZero() {
		if wake := rl.last.Add(rl.interval); wake.After(now) {
			timer := time.NewTimer(wake.Sub(now))
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now = <-timer.C:
			}
		}
	}
	rl.last = now
	return nil
}
