// Package sink delivers classification records to their destination with
// bounded retries. Undeliverable records are reported and dropped rather
// than blocking the stream.
package sink

import (
	"context"
	"errors"
	"fmt"

	"token-sentry/internal/domain"
)

// ResultSink receives classification records from the engine.
type ResultSink interface {
	// Deliver persists or forwards a single classification. Delivery of an
	// already-delivered record must succeed (at-least-once upstream).
	Deliver(ctx context.Context, c *domain.Classification) error
}

// RetryableError marks a delivery failure as transient.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as transient. Returns nil for nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is marked transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
