package client

import (
	"math"
	"math/rand"
	"time"
)

// ReconnectPolicy bounds the automatic reconnect loop. It is injected at
// construction so retry behavior is testable in isolation instead of living
// in hard-coded constants.
type ReconnectPolicy struct {
	// MaxAttempts caps consecutive failed attempts. The zero value takes the
	// default cap; a negative value retries forever.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p *ReconnectPolicy) defaults() {
	if p.BaseDelay == 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 10
	}
}

// stableConnection is how long a connection must live before the attempt
// counter resets; a flapping link keeps climbing the backoff curve.
const stableConnection = 60 * time.Second

// reconnector tracks backoff state across one client's lifetime.
type reconnector struct {
	policy      ReconnectPolicy
	attempt     int
	connectedAt time.Time
}

func newReconnector(policy ReconnectPolicy) *reconnector {
	policy.defaults()
	return &reconnector{policy: policy}
}

func (r *reconnector) shouldReconnect() bool {
	return r.policy.MaxAttempts <= 0 || r.attempt < r.policy.MaxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

// nextDelay returns the wait before the next attempt: exponential from
// BaseDelay with up to 50% jitter, capped at MaxDelay.
func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > stableConnection {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.policy.BaseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.policy.BaseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.policy.MaxDelay),
	))
	r.attempt++
	return delay
}

func (r *reconnector) reset() {
	r.attempt = 0
	r.connectedAt = time.Time{}
}
