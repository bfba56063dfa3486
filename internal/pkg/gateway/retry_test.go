package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := withRetryDelay(context.Background(), "op", time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &TransientError{Err: errors.New("503")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid amount")
	err := withRetryDelay(context.Background(), "op", time.Millisecond, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "4xx class errors are never retried")
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetryDelay(context.Background(), "op", time.Millisecond, func() error {
		calls++
		return &TransientError{Err: errors.New("timeout")}
	})
	require.Error(t, err)
	assert.Equal(t, defaultRetryAttempts, calls)
	assert.True(t, IsTransient(err), "wrapped cause stays detectable")
}

func TestWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetryDelay(ctx, "op", time.Minute, func() error {
		calls++
		return &TransientError{Err: errors.New("timeout")}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&TransientError{Err: errors.New("x")}))
	assert.True(t, IsTransient(errors.Join(errors.New("wrap"), &TransientError{Err: errors.New("x")})))
	assert.False(t, IsTransient(errors.New("x")))
	assert.False(t, IsTransient(nil))
}
