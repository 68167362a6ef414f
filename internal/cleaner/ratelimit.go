package cleaner

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// RateLimiter enforces two independent spacing bounds before every
// platform action: a minimum global gap between any two actions, and a
// minimum gap between two actions against the same peer. The platform
// penalizes burstiness and per-peer hammering separately, so both
// bounds must hold.
//
// State lives for one job and is discarded with it; there is no ambient
// global limiter.
type RateLimiter struct {
	mu       sync.Mutex
	spacing  time.Duration
	jitter   time.Duration
	interval time.Duration

	nextGlobal time.Time
	nextPeer   map[int64]time.Time
}

// NewRateLimiter creates a limiter with the given global spacing,
// maximum random jitter added on top of it, and per-peer interval.
func NewRateLimiter(spacing, jitter, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		spacing:  spacing,
		jitter:   jitter,
		interval: interval,
		nextPeer: make(map[int64]time.Time),
	}
}

// Wait blocks until both bounds allow an action against peerID, or the
// context is cancelled. The slot is reserved under the lock before
// sleeping, so concurrent callers never collapse onto the same slot.
func (rl *RateLimiter) Wait(ctx context.Context, peerID int64) error {
	rl.mu.Lock()

	at := time.Now()
	if rl.nextGlobal.After(at) {
		at = rl.nextGlobal
	}
	if next, ok := rl.nextPeer[peerID]; ok && next.After(at) {
		at = next
	}

	rl.nextGlobal = at.Add(rl.spacing + rl.randomJitter())
	rl.nextPeer[peerID] = at.Add(rl.interval)

	rl.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// randomJitter returns a random duration in [0, jitter).
func (rl *RateLimiter) randomJitter() time.Duration {
	if rl.jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(rl.jitter)))
}
