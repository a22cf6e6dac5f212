package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using PostgreSQL.
// Amounts travel as NUMERIC text to keep decimal precision exact.
type TradeEventStore struct {
	pool *Pool
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(pool *Pool) *TradeEventStore {
	return &TradeEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

const insertTradeEventQuery = `
	INSERT INTO trade_events (id, mint, wallet, side, amount, slot, ts, out_of_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const selectTradeEventColumns = `
	SELECT id, mint, wallet, side, amount::text, slot, ts, out_of_order
	FROM trade_events
`

// Insert adds a new trade event. Returns ErrDuplicateKey if the event id
// already exists.
func (s *TradeEventStore) Insert(ctx context.Context, e *domain.TradeEvent) error {
	if e.ID == "" || e.Mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeEventQuery,
		e.ID, e.Mint, e.Wallet, e.Side, e.Amount.String(), e.Slot, e.Timestamp, e.OutOfOrder,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any
// duplicate.
func (s *TradeEventStore) InsertBulk(ctx context.Context, events []*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e.ID == "" || e.Mint == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTradeEventQuery,
			e.ID, e.Mint, e.Wallet, e.Side, e.Amount.String(), e.Slot, e.Timestamp, e.OutOfOrder,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByMint retrieves all events for a mint, ordered by (slot, id) ASC.
func (s *TradeEventStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeEvent, error) {
	query := selectTradeEventColumns + `
		WHERE mint = $1
		ORDER BY slot ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get trade events by mint: %w", err)
	}
	defer rows.Close()

	var events []*domain.TradeEvent
	for rows.Next() {
		e, err := scanTradeEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade events: %w", err)
	}
	return events, nil
}

// ReadAll streams every stored event ordered by (slot, id) ASC. The
// callback aborts the scan by returning an error.
func (s *TradeEventStore) ReadAll(ctx context.Context, fn func(*domain.TradeEvent) error) error {
	query := selectTradeEventColumns + `
		ORDER BY slot ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("read all trade events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanTradeEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate trade events: %w", err)
	}
	return nil
}

func scanTradeEvent(rows pgx.Rows) (*domain.TradeEvent, error) {
	var (
		e      domain.TradeEvent
		amount string
	)
	if err := rows.Scan(&e.ID, &e.Mint, &e.Wallet, &e.Side, &amount, &e.Slot, &e.Timestamp, &e.OutOfOrder); err != nil {
		return nil, fmt.Errorf("scan trade event: %w", err)
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse trade amount %q: %w", amount, err)
	}
	e.Amount = dec
	return &e, nil
}
