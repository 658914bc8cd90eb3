package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/config"
	pkgerrors "trustcore/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("gateway timeout")
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
		return NewFatalError(errors.New("rejected"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("unavailable")
	}, func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, nextDelay, 2*time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestFromConfig(t *testing.T) {
	policy := FromConfig(config.RetryConfig{MaxAttempts: 5, Multiplier: 3})

	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 3.0, policy.Multiplier)
	assert.Equal(t, DefaultPolicy().InitialInterval, policy.InitialInterval)
}

func TestCalculateBackoffDuration(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, CalculateBackoffDuration(1, 100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, CalculateBackoffDuration(10, 100*time.Millisecond, 2, time.Second))
}

func TestRetry_HonoursAppErrorClassification(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return pkgerrors.Validationf("bad window")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return pkgerrors.ErrDependencyUnavailable
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
