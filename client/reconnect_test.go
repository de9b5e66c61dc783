package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	r := newReconnector(ReconnectPolicy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	})

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		delays = append(delays, r.nextDelay())
	}

	// Jitter adds at most half the base delay on top of the exponential term.
	assert.GreaterOrEqual(t, delays[0], 100*time.Millisecond)
	assert.Less(t, delays[0], 200*time.Millisecond)
	assert.GreaterOrEqual(t, delays[2], 400*time.Millisecond)

	for _, d := range delays {
		assert.LessOrEqual(t, d, time.Second, "delay must never exceed MaxDelay")
	}
	assert.Equal(t, time.Second, delays[5], "deep into the curve the cap binds exactly")
}

func TestShouldReconnectStopsAtMaxAttempts(t *testing.T) {
	r := newReconnector(ReconnectPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	attempts := 0
	for r.shouldReconnect() {
		r.nextDelay()
		attempts++
	}
	assert.Equal(t, 3, attempts)
}

func TestStableConnectionResetsAttempts(t *testing.T) {
	r := newReconnector(ReconnectPolicy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Minute})

	for i := 0; i < 5; i++ {
		r.nextDelay()
	}

	// A connection that stayed up long enough starts the curve over.
	r.connectedAt = time.Now().Add(-2 * stableConnection)
	d := r.nextDelay()
	assert.Less(t, d, 200*time.Millisecond)
}

func TestNegativeMaxAttemptsRetriesForever(t *testing.T) {
	r := newReconnector(ReconnectPolicy{MaxAttempts: -1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	// Defaults must not rewrite the unlimited sentinel.
	assert.Equal(t, -1, r.policy.MaxAttempts)

	for i := 0; i < 100; i++ {
		assert.True(t, r.shouldReconnect())
		r.nextDelay()
	}
}

func TestResetClearsState(t *testing.T) {
	r := newReconnector(ReconnectPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	r.nextDelay()
	r.nextDelay()
	assert.False(t, r.shouldReconnect())

	r.reset()
	assert.True(t, r.shouldReconnect())
}

func TestPolicyDefaults(t *testing.T) {
	r := newReconnector(ReconnectPolicy{})
	assert.Equal(t, time.Second, r.policy.BaseDelay)
	assert.Equal(t, 30*time.Second, r.policy.MaxDelay)
	assert.Equal(t, 10, r.policy.MaxAttempts)
}
