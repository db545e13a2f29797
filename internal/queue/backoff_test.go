package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_PositiveAndWithinJitterBound(t *testing.T) {
	base := 5 * time.Second
	cap := 10 * time.Minute
	prevMax := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		d := BackoffDelay(attempt, base, cap)
		assert.Positive(t, d)
		// Upper bound across all jitter draws should not exceed 1.5x cap-at-that-attempt.
		maxPossible := time.Duration(float64(base) * pow2(attempt-1) * 1.5)
		if maxPossible > cap {
			maxPossible = time.Duration(float64(cap) * 1.5)
		}
		assert.LessOrEqual(t, d, maxPossible)
		prevMax = maxPossible
	}
	_ = prevMax
}

func TestBackoffDelay_RespectsCap(t *testing.T) {
	d := BackoffDelay(20, time.Second, 10*time.Second)
	assert.LessOrEqual(t, d, 15*time.Second)
}

func pow2(n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 2
	}
	return r
}
