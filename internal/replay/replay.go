// Package replay rebuilds in-memory aggregation state from the raw event
// archive. Classifiers stay muted: past classifications were already
// emitted and persist under their dedup keys.
package replay

import (
	"context"
	"fmt"
	"log"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
	"token-sentry/internal/wallets"
)

// Options names the state being rebuilt and its sources.
type Options struct {
	Tokens storage.TokenStore
	Trades storage.TradeEventStore

	Aggregator *aggregate.Aggregator
	Index      *wallets.Index

	Logger *log.Logger
}

// Summary reports what a rebuild applied.
type Summary struct {
	Tokens        int
	Trades        int
	OutOfOrder    int
	WindowsClosed int
	HighestSlot   int64
}

// Rebuild replays archived tokens and trade events in (slot, id) order
// through the aggregator and the wallet index. Windows that close during
// the replay are dropped: their results were archived live.
func Rebuild(ctx context.Context, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	tokens, err := opts.Tokens.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: load tokens: %w", err)
	}

	summary := &Summary{}

	// Tokens arrive ordered by slot; creations interleave with the trade
	// stream so a token's creation always precedes its trades.
	next := 0
	applyCreationsThrough := func(slot int64) {
		for next < len(tokens) && tokens[next].Slot <= slot {
			t := tokens[next]
			opts.Aggregator.OnTokenCreated(&domain.CreationEvent{
				ID:        "replay-" + t.Mint,
				Mint:      t.Mint,
				Creator:   t.Creator,
				Name:      t.Name,
				Symbol:    t.Symbol,
				Slot:      t.Slot,
				Timestamp: t.CreatedAt,
			})
			summary.Tokens++
			next++
		}
	}

	err = opts.Trades.ReadAll(ctx, func(e *domain.TradeEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		applyCreationsThrough(e.Slot)

		cp := *e
		cp.OutOfOrder = false
		if closed := opts.Aggregator.OnTrade(&cp); closed != nil {
			summary.WindowsClosed++
		}
		if cp.OutOfOrder {
			summary.OutOfOrder++
		}
		opts.Index.Record(&cp)

		summary.Trades++
		if e.Slot > summary.HighestSlot {
			summary.HighestSlot = e.Slot
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay: read events: %w", err)
	}

	applyCreationsThrough(int64(1<<62 - 1))

	logger.Printf("replay: rebuilt %d tokens, %d trades (%d out of order), %d windows closed, highest slot %d",
		summary.Tokens, summary.Trades, summary.OutOfOrder, summary.WindowsClosed, summary.HighestSlot)
	return summary, nil
}
