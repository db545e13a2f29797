// Package queue implements the in-process worker pool on top of the
// domain.JobQueue substrate (component A): registering per-queue
// processors, claiming jobs, and running them with a bounded concurrency
// semaphore.
package queue

import (
	"math"
	"math/rand"
	"time"
)

// BackoffDelay implements delay = min(cap, base * 2^(attempt-1)) * U(0.5, 1.5).
// attempt is 1-based (the attempt number that just failed).
func BackoffDelay(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 5 * time.Second
	}
	if cap <= 0 {
		cap = 10 * time.Minute
	}
	raw := float64(base) * math.Pow(2, float64(attempt-1))
	capped := math.Min(raw, float64(cap))
	jitter := 0.5 + rand.Float64() // nolint:gosec // jitter only, not security sensitive
	return time.Duration(capped * jitter)
}
