package wallets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sentry/internal/domain"
)

func tradeAt(wallet, mint string, ts int64) *domain.TradeEvent {
	return &domain.TradeEvent{
		ID:        "sig",
		Mint:      mint,
		Wallet:    wallet,
		Side:      domain.TradeSideBuy,
		Amount:    decimal.RequireFromString("0.01"),
		Slot:      100,
		Timestamp: ts,
	}
}

func TestIndex_Record(t *testing.T) {
	ix := NewIndex(Config{})

	ix.Record(tradeAt("w1", "m1", 1000))
	ix.Record(tradeAt("w1", "m2", 2000))

	a, ok := ix.Snapshot("w1")
	require.True(t, ok)
	assert.Equal(t, 2, a.TotalTrades)
	assert.Equal(t, int64(2000), a.LastSeen)
}

func TestIndex_MarkSniperWindow_DistinctTokens(t *testing.T) {
	ix := NewIndex(Config{})

	ix.MarkSniperWindow("w1", "m1", 1000)
	ix.MarkSniperWindow("w1", "m1", 2000)
	ix.MarkSniperWindow("w1", "m2", 3000)

	a, _ := ix.Snapshot("w1")
	assert.Equal(t, 3, a.SniperWindows)
	assert.Equal(t, 2, a.TokensSniped)
	assert.Equal(t, 2, ix.SnipedTokenCount("w1"))
}

func TestIndex_IsRepeatSniper(t *testing.T) {
	ix := NewIndex(Config{})

	ix.MarkSniperWindow("w1", "m1", 1000)
	assert.False(t, ix.IsRepeatSniper("w1", 2, 5000))

	ix.MarkSniperWindow("w1", "m2", 2000)
	assert.True(t, ix.IsRepeatSniper("w1", 2, 5000))

	assert.False(t, ix.IsRepeatSniper("unknown", 1, 5000))
}

func TestIndex_DecayWindow(t *testing.T) {
	ix := NewIndex(Config{DecayWindow: 10 * time.Second})

	ix.MarkSniperWindow("w1", "m1", 1000)
	ix.MarkSniperWindow("w1", "m2", 2000)
	ix.MarkSniperWindow("w1", "m3", 15000)

	// At t=16s: the first two fall outside the 10s window.
	assert.Equal(t, 1, ix.SniperWindowCount("w1", 16000))
	// All-time counter still reports everything.
	a, _ := ix.Snapshot("w1")
	assert.Equal(t, 3, a.SniperWindows)
}

func TestIndex_TopRepeatWallets(t *testing.T) {
	ix := NewIndex(Config{})

	ix.MarkSniperWindow("w1", "m1", 1000)
	ix.MarkSniperWindow("w1", "m2", 2000)
	ix.MarkSniperWindow("w2", "m1", 5000)
	ix.MarkSniperWindow("w2", "m2", 6000)
	ix.MarkSniperWindow("w3", "m1", 9000)

	top := ix.TopRepeatWallets(1)
	require.Len(t, top, 3)

	// w1 and w2 tie on count 2; w2 is more recent.
	assert.Equal(t, "w2", top[0].Wallet)
	assert.Equal(t, "w1", top[1].Wallet)
	assert.Equal(t, "w3", top[2].Wallet)

	// Threshold filter.
	assert.Len(t, ix.TopRepeatWallets(2), 2)
	assert.Empty(t, ix.TopRepeatWallets(5))
}

func TestIndex_DistinctTokensWithin(t *testing.T) {
	ix := NewIndex(Config{})

	ix.Record(tradeAt("w1", "m1", 1000))
	ix.Record(tradeAt("w1", "m2", 5000))
	ix.Record(tradeAt("w1", "m3", 9000))

	// Span covering last 5s at t=10s: m2 and m3 qualify.
	assert.Equal(t, 2, ix.DistinctTokensWithin("w1", 5*time.Second, 10000))
	// Wide span covers all three.
	assert.Equal(t, 3, ix.DistinctTokensWithin("w1", time.Minute, 10000))
	assert.Equal(t, 0, ix.DistinctTokensWithin("w9", time.Minute, 10000))
}

func TestIndex_AssociateCopycat(t *testing.T) {
	ix := NewIndex(Config{})

	ix.AssociateCopycat("w1", 1000)
	ix.AssociateCopycat("w1", 2000)

	a, _ := ix.Snapshot("w1")
	assert.Equal(t, 2, a.CopycatTokens)
	assert.Equal(t, int64(2000), a.LastSeen)
}
