package scheduler

import (
	"math/rand"
	"time"
)

// backoffDelay computes the delay before retry attempt retryCount
// (1-based): min(base * 2^(retryCount-1), max) plus up to 10% random
// jitter so tasks failing together do not retry in lockstep.
func backoffDelay(base, max time.Duration, retryCount int) time.Duration {
	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= max || delay <= 0 { // <= 0 guards shift overflow
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}
