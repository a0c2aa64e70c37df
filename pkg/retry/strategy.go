package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/code-payments/endpoint-mock/pkg/retry/backoff"
)

// Strategy is a function that determines whether or not an action should be
// retried. Strategies are allowed to delay or cause other side effects.
type Strategy func(attempts uint, err error) bool

// Limit caps the total number of attempts. maxAttempts should be >= 1, since
// the action is evaluated first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, err error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of retriableErrors.
func RetriableErrors(retriableErrors ...error) Strategy {
	return RetriableIf(func(err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	})
}

// RetriableIf only retries errors for which isRetriable returns true. Use it
// for errors that can't be matched against a sentinel.
func RetriableIf(isRetriable func(err error) bool) Strategy {
	return func(attempts uint, err error) bool {
		return isRetriable(err)
	}
}

// Backoff sleeps before the next attempt, capped at maxBackoff.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, err error) bool {
		sleeperImpl.Sleep(capped(strategy(attempts), maxBackoff))
		return true
	}
}

// BackoffWithJitter is Backoff with the capped delay randomly shifted by up
// to jitter (a fraction of the delay) in either direction.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, err error) bool {
		delay := capped(strategy(attempts), maxBackoff)
		sleeperImpl.Sleep(time.Duration(float64(delay) * (1 + (rand.Float64()*jitter*2 - jitter))))
		return true
	}
}

func capped(delay, max time.Duration) time.Duration {
	return time.Duration(math.Min(float64(max), float64(delay)))
}

type sleeper interface {
	Sleep(time.Duration)
}

type realSleeper struct{}

func (r *realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = &realSleeper{}
