package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// ClassificationStore implements storage.ClassificationStore using
// PostgreSQL. The dedup key carries a unique constraint, which gives the
// sink its idempotent persistence.
type ClassificationStore struct {
	pool *Pool
}

// NewClassificationStore creates a new ClassificationStore.
func NewClassificationStore(pool *Pool) *ClassificationStore {
	return &ClassificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClassificationStore = (*ClassificationStore)(nil)

const selectClassificationColumns = `
	SELECT id, kind, mint, wallet, dedup_key, window_seq, slot, event_id, rel_mint, metric::text, ts
	FROM classifications
`

// Insert adds a new classification. Returns ErrDuplicateKey if a record
// with the same dedup key exists.
func (s *ClassificationStore) Insert(ctx context.Context, c *domain.Classification) error {
	if c.ID == "" || c.DedupKey == "" || c.Kind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO classifications (
			id, kind, mint, wallet, dedup_key, window_seq, slot, event_id, rel_mint, metric, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ID, string(c.Kind), c.Mint, c.Wallet, c.DedupKey,
		c.WindowSeq, c.Slot, c.EventID, c.RelMint, c.Metric.String(), c.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// GetByMint retrieves all classifications for a mint, ordered by
// timestamp ASC.
func (s *ClassificationStore) GetByMint(ctx context.Context, mint string) ([]*domain.Classification, error) {
	query := selectClassificationColumns + `
		WHERE mint = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get classifications by mint: %w", err)
	}
	defer rows.Close()

	return scanClassifications(rows)
}

// GetByKind retrieves all classifications of a kind, ordered by
// timestamp ASC.
func (s *ClassificationStore) GetByKind(ctx context.Context, kind domain.Kind) ([]*domain.Classification, error) {
	query := selectClassificationColumns + `
		WHERE kind = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get classifications by kind: %w", err)
	}
	defer rows.Close()

	return scanClassifications(rows)
}

func scanClassifications(rows pgx.Rows) ([]*domain.Classification, error) {
	var out []*domain.Classification
	for rows.Next() {
		var (
			c      domain.Classification
			kind   string
			metric string
		)
		err := rows.Scan(&c.ID, &kind, &c.Mint, &c.Wallet, &c.DedupKey,
			&c.WindowSeq, &c.Slot, &c.EventID, &c.RelMint, &metric, &c.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		c.Kind = domain.Kind(kind)
		dec, err := decimal.NewFromString(metric)
		if err != nil {
			return nil, fmt.Errorf("parse classification metric %q: %w", metric, err)
		}
		c.Metric = dec
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}
	return out, nil
}
