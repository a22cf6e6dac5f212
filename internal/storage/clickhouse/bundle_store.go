package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
)

// BundleStore implements storage.BundleStore using ClickHouse. Bundles are
// snapshots: re-inserting a (mint, slot) pair supersedes the previous row
// via ReplacingMergeTree, so reads use FINAL.
type BundleStore struct {
	conn *Conn
}

// NewBundleStore creates a new BundleStore.
func NewBundleStore(conn *Conn) *BundleStore {
	return &BundleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BundleStore = (*BundleStore)(nil)

// InsertBulk adds multiple bundle snapshots.
func (s *BundleStore) InsertBulk(ctx context.Context, bundles []*domain.Bundle) error {
	if len(bundles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bundles (mint, slot, buy_total, sell_total, trade_count)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bundles {
		err = batch.Append(
			b.Mint, uint64(b.Slot),
			b.BuyTotal.String(), b.SellTotal.String(),
			uint32(b.TradeCount),
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

// GetByMint retrieves all bundles for a mint, ordered by slot ASC.
func (s *BundleStore) GetByMint(ctx context.Context, mint string) ([]*domain.Bundle, error) {
	query := `
		SELECT mint, slot, buy_total, sell_total, trade_count
		FROM bundles FINAL
		WHERE mint = ?
		ORDER BY slot ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var out []*domain.Bundle
	for rows.Next() {
		var (
			b                   domain.Bundle
			slot                uint64
			tradeCount          uint32
			buyTotal, sellTotal string
		)
		if err := rows.Scan(&b.Mint, &slot, &buyTotal, &sellTotal, &tradeCount); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		b.Slot = int64(slot)
		b.TradeCount = int(tradeCount)
		if b.BuyTotal, err = decimal.NewFromString(buyTotal); err != nil {
			return nil, fmt.Errorf("parse buy total %q: %w", buyTotal, err)
		}
		if b.SellTotal, err = decimal.NewFromString(sellTotal); err != nil {
			return nil, fmt.Errorf("parse sell total %q: %w", sellTotal, err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}
	return out, nil
}
