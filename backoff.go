package spaceport

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the delay before a reconnect attempt.
//
// The attempt parameter is the number of reconnect attempts already made
// since the last successful connection, starting at 0 for the first retry.
// The Connection Supervisor resets the counter to zero every time a
// connection is established.
type BackoffStrategy interface {
	// NextDelay returns the delay to wait before the given attempt.
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements capped exponential backoff with optional
// jitter. The delay calculation is:
//
//	delay = min(Initial * (Multiplier ^ attempt), Max) ± jitter
//
// With the default reconnect settings (Initial=1s, Max=30s, Multiplier=2)
// this produces the sequence 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
//
// Example:
//
//	backoff := &spaceport.ExponentialBackoff{
//	    Initial:    500 * time.Millisecond,
//	    Max:        10 * time.Second,
//	    Multiplier: 2.0,
//	    Jitter:     0.2, // ±20% randomization
//	}
type ExponentialBackoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the computed delay.
	Max time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	// Jitter is the randomization factor (0.0 to 1.0).
	// 0.2 means ±20% randomization of the calculated delay.
	// The reconnect scheduler uses no jitter so delays stay predictable.
	Jitter float64
}

// DefaultReconnectBackoff returns the backoff used by the realtime client's
// reconnect scheduler: 1s initial delay doubling up to a 30s cap, no jitter.
func DefaultReconnectBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}
}

// NextDelay returns the capped exponential delay for the given attempt.
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	multiplier := b.Multiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}

	delay := float64(b.Initial) * math.Pow(multiplier, float64(attempt))

	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		jitterRange := delay * b.Jitter
		delay += jitterRange * (2*rand.Float64() - 1)
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// reconnectBackoff builds the scheduler's strategy from the realtime config.
func reconnectBackoff(cfg RealtimeConfig) BackoffStrategy {
	return &ExponentialBackoff{
		Initial:    cfg.ReconnectDelay,
		Max:        cfg.MaxReconnectDelay,
		Multiplier: 2.0,
	}
}
