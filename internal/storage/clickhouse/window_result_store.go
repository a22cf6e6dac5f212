package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// WindowResultStore implements storage.WindowResultStore using ClickHouse.
// Totals travel as strings: ClickHouse keeps the archive, the decimal
// arithmetic already happened upstream and must survive round-trips.
type WindowResultStore struct {
	conn *Conn
}

// NewWindowResultStore creates a new WindowResultStore.
func NewWindowResultStore(conn *Conn) *WindowResultStore {
	return &WindowResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WindowResultStore = (*WindowResultStore)(nil)

// InsertBulk adds multiple window results.
func (s *WindowResultStore) InsertBulk(ctx context.Context, results []*domain.WindowResult) error {
	if len(results) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO window_results (
			mint, seq, opened_at, closed_at, buy_total, sell_total,
			buy_count, sell_count, net, outcome, wallets
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		err = batch.Append(
			r.Mint, uint64(r.Seq), r.OpenedAt, r.ClosedAt,
			r.BuyTotal.String(), r.SellTotal.String(),
			uint32(r.BuyCount), uint32(r.SellCount),
			r.Net.String(), r.Outcome, r.Wallets,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all results for a mint, ordered by seq ASC.
func (s *WindowResultStore) GetByMint(ctx context.Context, mint string) ([]*domain.WindowResult, error) {
	query := `
		SELECT mint, seq, opened_at, closed_at, buy_total, sell_total,
		       buy_count, sell_count, net, outcome, wallets
		FROM window_results
		WHERE mint = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query window results: %w", err)
	}
	defer rows.Close()

	var out []*domain.WindowResult
	for rows.Next() {
		var (
			r                        domain.WindowResult
			seq                      uint64
			buyCount, sellCount      uint32
			buyTotal, sellTotal, net string
		)
		err := rows.Scan(&r.Mint, &seq, &r.OpenedAt, &r.ClosedAt,
			&buyTotal, &sellTotal, &buyCount, &sellCount, &net, &r.Outcome, &r.Wallets)
		if err != nil {
			return nil, fmt.Errorf("scan window result: %w", err)
		}
		r.Seq = int64(seq)
		r.BuyCount = int(buyCount)
		r.SellCount = int(sellCount)
		if r.BuyTotal, err = decimal.NewFromString(buyTotal); err != nil {
			return nil, fmt.Errorf("parse buy total %q: %w", buyTotal, err)
		}
		if r.SellTotal, err = decimal.NewFromString(sellTotal); err != nil {
			return nil, fmt.Errorf("parse sell total %q: %w", sellTotal, err)
		}
		if r.Net, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("parse net %q: %w", net, err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window results: %w", err)
	}
	return out, nil
}
