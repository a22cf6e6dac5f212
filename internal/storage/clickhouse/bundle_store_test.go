package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sentry/internal/domain"
)

func TestBundleStore_InsertBulkAndGetByMint(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBundleStore(conn)
	ctx := context.Background()

	bundles := []*domain.Bundle{
		{
			Mint:       "MintAddress123",
			Slot:       102,
			BuyTotal:   decimal.RequireFromString("0.1"),
			SellTotal:  decimal.RequireFromString("0.3"),
			TradeCount: 2,
		},
		{
			Mint:       "MintAddress123",
			Slot:       101,
			BuyTotal:   decimal.RequireFromString("0.75"),
			SellTotal:  decimal.Zero,
			TradeCount: 3,
		},
	}

	err := store.InsertBulk(ctx, bundles)
	require.NoError(t, err)

	retrieved, err := store.GetByMint(ctx, "MintAddress123")
	require.NoError(t, err)
	require.Len(t, retrieved, 2)

	// Slot order
	assert.Equal(t, int64(101), retrieved[0].Slot)
	assert.True(t, retrieved[0].BuyTotal.Equal(decimal.RequireFromString("0.75")))
	assert.True(t, retrieved[0].SellTotal.IsZero())
	assert.Equal(t, 3, retrieved[0].TradeCount)

	assert.Equal(t, int64(102), retrieved[1].Slot)
	assert.Equal(t, 2, retrieved[1].TradeCount)
}

func TestBundleStore_SnapshotSupersedes(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBundleStore(conn)
	ctx := context.Background()

	initial := &domain.Bundle{
		Mint:       "Mint",
		Slot:       200,
		BuyTotal:   decimal.RequireFromString("0.5"),
		SellTotal:  decimal.Zero,
		TradeCount: 2,
	}
	require.NoError(t, store.InsertBulk(ctx, []*domain.Bundle{initial}))

	// A later snapshot of the same slot wins
	updated := &domain.Bundle{
		Mint:       "Mint",
		Slot:       200,
		BuyTotal:   decimal.RequireFromString("1.5"),
		SellTotal:  decimal.RequireFromString("0.25"),
		TradeCount: 4,
	}
	require.NoError(t, store.InsertBulk(ctx, []*domain.Bundle{updated}))

	retrieved, err := store.GetByMint(ctx, "Mint")
	require.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.True(t, retrieved[0].BuyTotal.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 4, retrieved[0].TradeCount)
}

func TestBundleStore_GetByMintEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBundleStore(conn)

	retrieved, err := store.GetByMint(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, retrieved)
}
