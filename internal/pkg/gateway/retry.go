package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// TransientError marks a provider failure worth retrying: network errors and
// 5xx responses. Validation failures (4xx) are never wrapped in it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
)

// withRetry runs fn with bounded exponential backoff. Only transient errors
// are retried; the last error is returned once attempts are exhausted.
func withRetry(ctx context.Context, op string, fn func() error) error {
	return withRetryDelay(ctx, op, defaultRetryBase, fn)
}

func withRetryDelay(ctx context.Context, op string, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for attempt := 1; attempt <= defaultRetryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == defaultRetryAttempts {
			break
		}
		log.Warnf("[Gateway] %s failed (attempt %d/%d), retrying in %s: %v", op, attempt, defaultRetryAttempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}
