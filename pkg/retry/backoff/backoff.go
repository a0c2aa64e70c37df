// Package backoff provides delay strategies for retry.
package backoff

import (
	"math"
	"time"
)

// Strategy provides the amount of time to wait before the next attempt.
// attempts starts at 1.
type Strategy func(attempts uint) time.Duration

// Constant always waits interval.
func Constant(interval time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return interval
	}
}

// Exponential waits baseDelay * base^(attempts - 1), saturating on overflow.
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		if delay := baseDelay * time.Duration(math.Pow(base, float64(attempts-1))); delay >= 0 {
			return delay
		}
		return math.MaxInt64
	}
}

// BinaryExponential is Exponential with a base of 2.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}
