package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/config"
)

func TestWrapper_TripsAfterFailures(t *testing.T) {
	w := NewWrapper(FromConfig("test-trip", config.CircuitBreakerConfig{
		FailureRatio: 0.5,
		MinRequests:  2,
		Timeout:      time.Minute,
	}))

	failing := func() (interface{}, error) { return nil, errors.New("registry down") }

	for i := 0; i < 2; i++ {
		_, err := w.ExecuteWithContext(context.Background(), failing)
		require.Error(t, err)
	}

	assert.True(t, w.IsOpen())

	_, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestWrapper_PassesResult(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-pass"))

	result, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) { return "0xabc", nil })
	require.NoError(t, err)
	assert.Equal(t, "0xabc", result)
	assert.Equal(t, gobreaker.StateClosed, w.State())
	assert.Equal(t, uint32(1), w.Counts().TotalSuccesses)
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-cancel"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFromConfig_Defaults(t *testing.T) {
	cfg := FromConfig("blockchain", config.CircuitBreakerConfig{MaxRequests: 7})
	assert.Equal(t, uint32(7), cfg.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.NotNil(t, cfg.ReadyToTrip)
}
