package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) backoff.BackOff {
	return ExponentialBackoffWithMaxElapsed(initialInterval, maxInterval, 0, multiplier)
}

func ExponentialBackoffWithMaxElapsed(initialInterval, maxInterval, maxElapsed time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = maxElapsed
	exp.Reset()
	return exp
}

// Schedule yields the delays of successive retries of a single operation without jitter:
// the Nth delay is initial * multiplier^(N-1).
type Schedule struct {
	b backoff.BackOff
}

func NewSchedule(initial time.Duration, multiplier float64, maxRetries int, maxInterval time.Duration) *Schedule {
	if maxRetries <= 0 {
		return &Schedule{b: &backoff.StopBackOff{}}
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.Multiplier = multiplier
	exp.RandomizationFactor = 0
	exp.MaxInterval = maxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &Schedule{b: backoff.WithMaxRetries(exp, uint64(maxRetries))}
}

// Next returns the next delay, or false once the retry budget is spent.
func (s *Schedule) Next() (time.Duration, bool) {
	d := s.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// Delay is the closed form of Schedule: attempt is 1-based.
func Delay(attempt int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	duration := float64(initialInterval) * math.Pow(multiplier, float64(attempt-1))
	if maxInterval > 0 && duration > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(duration)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
