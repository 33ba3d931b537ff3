package channel

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff decides how long to wait before each reconnection attempt.
type Backoff struct {
	// Initial is the delay before the first retry
	Initial time.Duration

	// Max caps every delay, jitter included
	Max time.Duration

	// Multiplier grows the delay per attempt (1 keeps it fixed)
	Multiplier float64

	// Jitter spreads each delay uniformly over ±Jitter of its value (0..1)
	Jitter float64

	// MaxAttempts bounds consecutive failed attempts; 0 means unbounded
	MaxAttempts int
}

// DefaultBackoff starts at 5s, doubles up to one minute with 20% jitter and
// gives up after 10 consecutive failures.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     5 * time.Second,
		Max:         time.Minute,
		Multiplier:  2,
		Jitter:      0.2,
		MaxAttempts: 10,
	}
}

// FixedBackoff retries forever after the same delay.
func FixedBackoff(d time.Duration) Backoff {
	return Backoff{Initial: d, Max: d, Multiplier: 1}
}

// Delay returns the wait before retry number attempt (0-based) and false
// once MaxAttempts is exhausted.
func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return 0, false
	}
	if b.Initial <= 0 {
		return 0, true
	}

	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Initial) * math.Pow(mult, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}

	if j := math.Min(math.Max(b.Jitter, 0), 1); j > 0 {
		d *= 1 - j + 2*j*rand.Float64()
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d), true
}
