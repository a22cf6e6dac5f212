package sink

import (
	"context"
	"errors"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// StoreSink persists classifications to a ClassificationStore. A duplicate
// dedup key means the record already landed, so redelivery is a success.
type StoreSink struct {
	store storage.ClassificationStore
}

var _ ResultSink = (*StoreSink)(nil)

// NewStoreSink creates a sink over the given classification store.
func NewStoreSink(store storage.ClassificationStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Deliver(ctx context.Context, c *domain.Classification) error {
	err := s.store.Insert(ctx, c)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDuplicateKey):
		return nil
	case errors.Is(err, storage.ErrInvalidInput):
		// Malformed records never heal on retry.
		return err
	default:
		return Retryable(err)
	}
}
