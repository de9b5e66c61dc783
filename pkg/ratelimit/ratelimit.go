// Package ratelimit provides per-user rate limiting for inbound realtime
// events (typing floods, ping storms).
//
// Sliding window with a cooldown penalty: maxEvents within window are
// allowed; the event that exceeds the limit starts a cooldown during which
// everything is rejected. In-memory on purpose: the gateway is a single
// instance and persisting counters would add write contention for no gain.
// The package depends on nothing inside the project (leaf dependency), so
// ws and handlers can both use it without import cycles.
package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks one user's counter. Two states: counting within a window,
// or cooling down (cooldownUntil in the future rejects everything).
type bucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero value = no cooldown
}

// EventRateLimiter limits how many realtime ops a user may send.
type EventRateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*bucket
	maxEvents   int
	window      time.Duration
	cooldown    time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewEventRateLimiter creates a limiter and starts its cleanup goroutine.
//
//	limiter := ratelimit.NewEventRateLimiter(30, 10*time.Second, 15*time.Second)
//	if !limiter.Allow(userID) { drop the event }
func NewEventRateLimiter(maxEvents int, window, cooldown time.Duration) *EventRateLimiter {
	rl := &EventRateLimiter{
		buckets:     make(map[string]*bucket),
		maxEvents:   maxEvents,
		window:      window,
		cooldown:    cooldown,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether the user may send another event now.
func (rl *EventRateLimiter) Allow(userID string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[userID]
	if !exists {
		rl.buckets[userID] = &bucket{count: 1, windowStart: now}
		return true
	}

	if !b.cooldownUntil.IsZero() && now.Before(b.cooldownUntil) {
		return false
	}

	if !b.cooldownUntil.IsZero() {
		// Cooldown over: start a fresh window.
		b.count = 1
		b.windowStart = now
		b.cooldownUntil = time.Time{}
		return true
	}

	if now.Sub(b.windowStart) > rl.window {
		b.count = 1
		b.windowStart = now
		return true
	}

	b.count++
	if b.count > rl.maxEvents {
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}

	return true
}

// Reset clears the user's bucket. Called when the user's last connection
// drops so a reconnecting user does not inherit a stale cooldown from a
// previous session; a user with other tabs still open keeps their bucket.
func (rl *EventRateLimiter) Reset(userID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.buckets, userID)
}

// Close stops the cleanup goroutine.
func (rl *EventRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *EventRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops buckets whose window and cooldown have both passed. Keeping
// cooling-down buckets is load-bearing: deleting them would erase the penalty.
func (rl *EventRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, b := range rl.buckets {
		windowExpired := now.Sub(b.windowStart) > rl.window
		cooldownExpired := b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)

		if windowExpired && cooldownExpired {
			delete(rl.buckets, userID)
		}
	}
}
