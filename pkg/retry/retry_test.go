package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("bad input"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "bad input", err.Error())
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.Greater(t, next, time.Duration(0))
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestSchedule_StrictlyIncreasing(t *testing.T) {
	s := NewSchedule(100*time.Millisecond, 2, 4, time.Hour)

	var got []time.Duration
	for {
		d, ok := s.Next()
		if !ok {
			break
		}
		got = append(got, d)
	}

	require.Len(t, got, 4)
	for i, d := range got {
		assert.Equal(t, Delay(i+1, 100*time.Millisecond, 2, time.Hour), d)
		if i > 0 {
			assert.Greater(t, d, got[i-1])
		}
	}
	assert.Equal(t, 800*time.Millisecond, got[3])
}

func TestSleep_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSchedule_ZeroRetries(t *testing.T) {
	_, ok := NewSchedule(time.Second, 2, 0, time.Hour).Next()
	assert.False(t, ok)
}
