package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{20, 10 * time.Second},
	}
	for _, tt := range tests {
		got, ok := b.Delay(tt.attempt)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "attempt %d", tt.attempt)
	}
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: time.Minute, Multiplier: 1, Jitter: 0.2}
	for i := 0; i < 200; i++ {
		got, ok := b.Delay(i)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, got, 800*time.Millisecond)
		assert.LessOrEqual(t, got, 1200*time.Millisecond)
	}
}

func TestBackoffMaxAttempts(t *testing.T) {
	b := DefaultBackoff()
	_, ok := b.Delay(b.MaxAttempts - 1)
	assert.True(t, ok)
	_, ok = b.Delay(b.MaxAttempts)
	assert.False(t, ok)

	fixed := FixedBackoff(time.Second)
	d, ok := fixed.Delay(1000)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "failed", Failed.String())
}
