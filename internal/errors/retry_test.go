package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:   max,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	sentinel := stderrors.New("permanently down")
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
	assert.True(t, stderrors.Is(err, sentinel))
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(5), func() error {
		return stderrors.New("never reached on canceled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResultReturnsValue(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() ([]float32, error) {
		calls++
		if calls < 2 {
			return nil, stderrors.New("warming up")
		}
		return []float32{0.1, 0.2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, got)
}

func TestRetryWithResultZeroValueOnFailure(t *testing.T) {
	got, err := RetryWithResult(context.Background(), fastRetryConfig(1), func() (int, error) {
		return 42, stderrors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 0, got)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 16*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}
