package sink

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"token-sentry/internal/domain"
)

// Retry defaults.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
)

// RetryConfig bounds the delivery retry loop.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the default retry bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Retrying decorates a sink with bounded exponential-backoff retries on
// transient failures. When retries are exhausted or the failure is
// permanent the record is reported undelivered and dropped: the stream is
// never blocked by a dead destination.
type Retrying struct {
	inner  ResultSink
	cfg    RetryConfig
	logger *log.Logger

	// onUndelivered receives records that could not be delivered. Optional.
	onUndelivered func(c *domain.Classification, err error)

	// onRetry is called before each retry attempt. Optional.
	onRetry func(c *domain.Classification, err error)
}

var _ ResultSink = (*Retrying)(nil)

// NewRetrying wraps inner with the retry policy.
func NewRetrying(inner ResultSink, cfg RetryConfig, logger *log.Logger) *Retrying {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retrying{inner: inner, cfg: cfg, logger: logger}
}

// SetUndeliveredHandler installs the undelivered-record callback.
func (r *Retrying) SetUndeliveredHandler(fn func(c *domain.Classification, err error)) {
	r.onUndelivered = fn
}

// SetRetryHandler installs the per-retry callback.
func (r *Retrying) SetRetryHandler(fn func(c *domain.Classification, err error)) {
	r.onRetry = fn
}

func (r *Retrying) Deliver(ctx context.Context, c *domain.Classification) error {
	op := func() error {
		err := r.inner.Deliver(ctx, c)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.InitialInterval
	eb.MaxInterval = r.cfg.MaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.cfg.MaxRetries), ctx)

	notify := func(err error, _ time.Duration) {
		if r.onRetry != nil {
			r.onRetry(c, err)
		}
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return nil
	}

	r.logger.Printf("[sink] dropping undelivered classification %s kind=%s: %v", c.ID, c.Kind, err)
	if r.onUndelivered != nil {
		r.onUndelivered(c, err)
	}
	return nil
}
