package storage

import (
	"context"

	"token-sentry/internal/domain"
)

// TokenStore provides access to token storage.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if mint exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.Token, error)

	// GetCreatedSince retrieves tokens created at or after the given
	// timestamp (ms), ordered by creation time ASC. Used by the copycat
	// look-back query.
	GetCreatedSince(ctx context.Context, since int64) ([]*domain.Token, error)

	// GetAll retrieves all tokens ordered by (slot, created_at) ASC.
	GetAll(ctx context.Context) ([]*domain.Token, error)
}

// TradeEventStore provides access to raw trade event storage.
// It doubles as the raw-event reader used by the replay path.
type TradeEventStore interface {
	// Insert adds a new trade event. Returns ErrDuplicateKey if the event
	// id already exists.
	Insert(ctx context.Context, e *domain.TradeEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any
	// duplicate.
	InsertBulk(ctx context.Context, events []*domain.TradeEvent) error

	// GetByMint retrieves all events for a mint, ordered by (slot, id) ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeEvent, error)

	// ReadAll streams every stored event ordered by (slot, id) ASC.
	// The callback aborts the scan by returning an error.
	ReadAll(ctx context.Context, fn func(*domain.TradeEvent) error) error
}

// ClassificationStore provides access to classification storage.
type ClassificationStore interface {
	// Insert adds a new classification. Returns ErrDuplicateKey if a record
	// with the same dedup key exists.
	Insert(ctx context.Context, c *domain.Classification) error

	// GetByMint retrieves all classifications for a mint, ordered by
	// timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Classification, error)

	// GetByKind retrieves all classifications of a kind, ordered by
	// timestamp ASC.
	GetByKind(ctx context.Context, kind domain.Kind) ([]*domain.Classification, error)
}

// WindowResultStore archives closed trade windows.
type WindowResultStore interface {
	// InsertBulk adds multiple window results.
	InsertBulk(ctx context.Context, results []*domain.WindowResult) error

	// GetByMint retrieves all results for a mint, ordered by seq ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.WindowResult, error)
}

// BundleStore archives per-slot bundle snapshots.
type BundleStore interface {
	// InsertBulk adds multiple bundle snapshots.
	InsertBulk(ctx context.Context, bundles []*domain.Bundle) error

	// GetByMint retrieves all bundles for a mint, ordered by slot ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Bundle, error)
}
