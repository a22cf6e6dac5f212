package classify

import (
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/domain"
	"token-sentry/internal/storage/memory"
	"token-sentry/internal/wallets"
)

type fixture struct {
	tokens *memory.TokenStore
	agg    *aggregate.Aggregator
	index  *wallets.Index
	set    *Set
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	tokens := memory.NewTokenStore()
	agg := aggregate.New(aggregate.DefaultConfig())
	index := wallets.NewIndex(wallets.Config{})
	set := NewSet(cfg, tokens, agg, index, log.New(testWriter{t}, "", 0))
	return &fixture{tokens: tokens, agg: agg, index: index, set: set}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func creation(mint, creator, name, symbol string, slot, ts int64) *domain.CreationEvent {
	return &domain.CreationEvent{
		ID:        "create-" + mint,
		Mint:      mint,
		Creator:   creator,
		Name:      name,
		Symbol:    symbol,
		Slot:      slot,
		Timestamp: ts,
	}
}

func tradeEvent(id, mint, wallet, side, amount string, slot, ts int64) *domain.TradeEvent {
	return &domain.TradeEvent{
		ID:        id,
		Mint:      mint,
		Wallet:    wallet,
		Side:      side,
		Amount:    decimal.RequireFromString(amount),
		Slot:      slot,
		Timestamp: ts,
	}
}

func kinds(cs []*domain.Classification) []domain.Kind {
	out := make([]domain.Kind, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Kind)
	}
	return out
}

func TestSet_DeveloperSold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	ev := creation("mintA", "devW", "Alpha", "ALP", 100, 1000)
	f.agg.OnTokenCreated(ev)
	require.NoError(t, f.tokens.Insert(ctx, ev.Token()))
	assert.Empty(t, f.set.OnTokenCreated(ctx, ev))

	sell := tradeEvent("t1", "mintA", "devW", domain.TradeSideSell, "10", 101, 1001)
	f.agg.OnTrade(sell)
	f.index.Record(sell)

	got := f.set.OnTrade(ctx, sell)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindDeveloperSold, got[0].Kind)
	assert.Equal(t, "mintA", got[0].Mint)
	assert.Equal(t, "devW", got[0].Wallet)
	assert.Equal(t, int64(1), got[0].WindowSeq)
	assert.True(t, got[0].Metric.Equal(decimal.RequireFromString("10")))

	// Re-applying the same trade in the same window is deduplicated.
	assert.Empty(t, f.set.OnTrade(ctx, sell))

	// A second creator sell in the same window is the same fact.
	sell2 := tradeEvent("t2", "mintA", "devW", domain.TradeSideSell, "3", 101, 1002)
	f.agg.OnTrade(sell2)
	assert.Empty(t, f.set.OnTrade(ctx, sell2))

	// A creator buy is a different kind and emits.
	buy := tradeEvent("t3", "mintA", "devW", domain.TradeSideBuy, "1", 101, 1003)
	f.agg.OnTrade(buy)
	got = f.set.OnTrade(ctx, buy)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindDeveloperBought, got[0].Kind)
}

func TestSet_DeveloperNewWindowNewFact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	ev := creation("mintA", "devW", "Alpha", "ALP", 100, 1000)
	f.agg.OnTokenCreated(ev)
	require.NoError(t, f.tokens.Insert(ctx, ev.Token()))

	sell := tradeEvent("t1", "mintA", "devW", domain.TradeSideSell, "5", 101, 1001)
	f.agg.OnTrade(sell)
	require.Len(t, f.set.OnTrade(ctx, sell), 1)

	// Next window: 6s later. The window roll happens inside OnTrade.
	sell2 := tradeEvent("t2", "mintA", "devW", domain.TradeSideSell, "5", 110, 7001)
	f.agg.OnTrade(sell2)
	got := f.set.OnTrade(ctx, sell2)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].WindowSeq)
}

func TestSet_DeveloperLateTradesKeyedBySlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	ev := creation("mintA", "devW", "Alpha", "ALP", 100, 1000)
	f.agg.OnTokenCreated(ev)
	require.NoError(t, f.tokens.Insert(ctx, ev.Token()))

	first := tradeEvent("t1", "mintA", "otherW", domain.TradeSideBuy, "1", 110, 1001)
	f.agg.OnTrade(first)
	assert.Empty(t, f.set.OnTrade(ctx, first))

	// A late creator sell past the window duration closes the window
	// without opening a new one: no active window when the hook runs.
	late := tradeEvent("t2", "mintA", "devW", domain.TradeSideSell, "5", 105, 8001)
	f.agg.OnTrade(late)
	require.True(t, late.OutOfOrder)
	got := f.set.OnTrade(ctx, late)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindDeveloperSold, got[0].Kind)
	assert.Equal(t, int64(0), got[0].WindowSeq)

	// A second late sell at a different slot is a distinct occurrence.
	late2 := tradeEvent("t3", "mintA", "devW", domain.TradeSideSell, "5", 106, 8002)
	f.agg.OnTrade(late2)
	require.True(t, late2.OutOfOrder)
	require.Len(t, f.set.OnTrade(ctx, late2), 1)

	// Re-applying the same slot is the same fact.
	assert.Empty(t, f.set.OnTrade(ctx, late2))
}

func TestSet_NonCreatorTradeIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	ev := creation("mintA", "devW", "Alpha", "ALP", 100, 1000)
	f.agg.OnTokenCreated(ev)
	require.NoError(t, f.tokens.Insert(ctx, ev.Token()))

	other := tradeEvent("t1", "mintA", "someoneElse", domain.TradeSideSell, "10", 101, 1001)
	f.agg.OnTrade(other)
	assert.Empty(t, f.set.OnTrade(ctx, other))
}

func TestSet_SniperWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig()) // sniper min trades 5

	// 6 trades inside one 5s window: 4 buys of 1, 2 sells of 1.
	for i := 0; i < 4; i++ {
		e := tradeEvent(fmt.Sprintf("b%d", i), "mintT", fmt.Sprintf("w%d", i), domain.TradeSideBuy, "1", 200, int64(1000+i))
		f.agg.OnTrade(e)
		f.index.Record(e)
	}
	for i := 0; i < 2; i++ {
		e := tradeEvent(fmt.Sprintf("s%d", i), "mintT", fmt.Sprintf("w%d", i), domain.TradeSideSell, "1", 200, int64(1100+i))
		f.agg.OnTrade(e)
		f.index.Record(e)
	}

	results := f.agg.CloseExpired(7000)
	require.Len(t, results, 1)

	got := f.set.OnWindowClosed(ctx, results[0])
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindSniper, got[0].Kind)
	assert.True(t, got[0].Metric.Equal(decimal.RequireFromString("2")), "net = +2, got %s", got[0].Metric)
	assert.Equal(t, results[0].Seq, got[0].WindowSeq)

	// Participation was recorded for every wallet in the window.
	assert.Equal(t, 1, f.index.SnipedTokenCount("w0"))

	// Replaying the same window result emits nothing new.
	assert.Empty(t, f.set.OnWindowClosed(ctx, results[0]))
}

func TestSet_QuietWindowNotSniper(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	for i := 0; i < 4; i++ {
		e := tradeEvent(fmt.Sprintf("b%d", i), "mintT", "w1", domain.TradeSideBuy, "1", 200, int64(1000+i))
		f.agg.OnTrade(e)
	}
	results := f.agg.CloseExpired(7000)
	require.Len(t, results, 1)
	assert.Empty(t, f.set.OnWindowClosed(ctx, results[0]))
	assert.Equal(t, 0, f.index.SnipedTokenCount("w1"))
}

// sniperWindow fabricates a closed window that qualifies as sniper activity
// with the given wallet among the participants.
func sniperWindow(mint string, seq int64, wallet string, closedAt int64) *domain.WindowResult {
	return &domain.WindowResult{
		Mint:     mint,
		Seq:      seq,
		OpenedAt: closedAt - 5000,
		ClosedAt: closedAt,
		BuyCount: 5,
		Net:      decimal.RequireFromString("5"),
		Outcome:  domain.OutcomeProfit,
		Wallets:  []string{wallet, "bystander"},
	}
}

func TestSet_SniperBotOnThirdDistinctToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig()) // sniper-bot threshold 3

	var botHits int
	for i := 1; i <= 4; i++ {
		r := sniperWindow(fmt.Sprintf("mint%d", i), 1, "botW", int64(10000*i))
		for _, c := range f.set.OnWindowClosed(ctx, r) {
			if c.Kind == domain.KindSniperBot && c.Wallet == "botW" {
				botHits++
				assert.True(t, c.Metric.Equal(decimal.RequireFromString("3")),
					"flagged at the third token, got %s", c.Metric)
			}
		}
		if i < 3 {
			assert.Equal(t, 0, botHits, "no flag before the third distinct token")
		}
	}
	assert.Equal(t, 1, botHits)
}

func TestSet_SniperBotRepeatWindowsSameToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	// Four sniper windows on the same token: one distinct token, no bot.
	for i := 1; i <= 4; i++ {
		r := sniperWindow("mintX", int64(i), "botW", int64(10000*i))
		for _, c := range f.set.OnWindowClosed(ctx, r) {
			assert.NotEqual(t, domain.KindSniperBot, c.Kind)
		}
	}
	assert.Equal(t, 1, f.index.SnipedTokenCount("botW"))
}

func TestSet_Copycat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	first := creation("mintOrig", "devA", "Moon Cat", "ABC", 100, 1000)
	require.NoError(t, f.tokens.Insert(ctx, first.Token()))
	assert.Empty(t, f.set.OnTokenCreated(ctx, first))

	second := creation("mintCopy", "devB", "Mooncat Classic", "ABC", 200, 60000)
	require.NoError(t, f.tokens.Insert(ctx, second.Token()))
	got := f.set.OnTokenCreated(ctx, second)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindCopycat, got[0].Kind)
	assert.Equal(t, "mintCopy", got[0].Mint)
	assert.Equal(t, "mintOrig", got[0].RelMint)
	assert.Equal(t, "devB", got[0].Wallet)

	// Copycat counter propagated to the wallet index.
	act, ok := f.index.Snapshot("devB")
	require.True(t, ok)
	assert.Equal(t, 1, act.CopycatTokens)

	// Re-applying the creation is deduplicated.
	assert.Empty(t, f.set.OnTokenCreated(ctx, second))
}

func TestSet_CopycatOutsideLookback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig()) // 10min look-back

	first := creation("mintOrig", "devA", "Moon Cat", "ABC", 100, 1000)
	require.NoError(t, f.tokens.Insert(ctx, first.Token()))

	// Created 11 minutes later: the original is out of range.
	late := creation("mintCopy", "devB", "Moon Cat", "ABC", 200, 1000+11*60*1000)
	require.NoError(t, f.tokens.Insert(ctx, late.Token()))
	assert.Empty(t, f.set.OnTokenCreated(ctx, late))
}

func TestSet_SniperWalletStandingQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig()) // threshold 3

	f.index.MarkSniperWindow("sw", "m1", 1000)
	f.index.MarkSniperWindow("sw", "m2", 2000)
	assert.Empty(t, kinds(f.set.OnTick(ctx, 3000)))

	f.index.MarkSniperWindow("sw", "m3", 3000)
	got := f.set.OnTick(ctx, 4000)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindSniperWallet, got[0].Kind)
	assert.Equal(t, "sw", got[0].Wallet)
	assert.True(t, got[0].Metric.Equal(decimal.RequireFromString("3")))

	// Standing query is idempotent across ticks.
	f.index.MarkSniperWindow("sw", "m4", 5000)
	assert.Empty(t, f.set.OnTick(ctx, 6000))
}

func TestSet_BotDeployer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig()) // 4 distinct tokens inside 10min

	base := int64(1_000_000)
	for i := 0; i < 3; i++ {
		f.index.Record(tradeEvent(fmt.Sprintf("t%d", i), fmt.Sprintf("mint%d", i), "depW", domain.TradeSideBuy, "0.1", int64(i), base+int64(i*1000)))
	}
	assert.Empty(t, f.set.OnTick(ctx, base+10000))

	f.index.Record(tradeEvent("t4", "mint4", "depW", domain.TradeSideBuy, "0.1", 4, base+4000))
	got := f.set.OnTick(ctx, base+10000)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindBotDeployer, got[0].Kind)
	assert.Equal(t, "depW", got[0].Wallet)
	assert.True(t, got[0].Metric.Equal(decimal.RequireFromString("4")))

	// Once flagged, stays flagged silently.
	assert.Empty(t, f.set.OnTick(ctx, base+11000))
}

func TestSet_BotDeployerSlowSpread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())

	// Four tokens, but spread over an hour: organic, not a deployer.
	base := int64(1_000_000)
	for i := 0; i < 4; i++ {
		f.index.Record(tradeEvent(fmt.Sprintf("t%d", i), fmt.Sprintf("mint%d", i), "slowW", domain.TradeSideBuy, "0.1", int64(i), base+int64(i)*20*60*1000))
	}
	assert.Empty(t, f.set.OnTick(ctx, base+61*60*1000))
}

type panicClassifier struct{ noopClassifier }

func (panicClassifier) Name() string { return "panics" }

func (panicClassifier) OnTrade(context.Context, *domain.TradeEvent) ([]*domain.Classification, error) {
	panic("boom")
}

func TestSet_ClassifierPanicIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	f.set.Add(panicClassifier{})

	var failed []string
	f.set.SetErrorHandler(func(name string, err error) {
		failed = append(failed, name)
		assert.ErrorContains(t, err, "boom")
	})

	ev := creation("mintA", "devW", "Alpha", "ALP", 100, 1000)
	f.agg.OnTokenCreated(ev)
	require.NoError(t, f.tokens.Insert(ctx, ev.Token()))

	sell := tradeEvent("t1", "mintA", "devW", domain.TradeSideSell, "10", 101, 1001)
	f.agg.OnTrade(sell)

	// The developer classification still lands despite the panicking peer.
	got := f.set.OnTrade(ctx, sell)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindDeveloperSold, got[0].Kind)
	assert.Equal(t, []string{"panics"}, failed)
}

func TestSet_TickUsesDecayScopedCount(t *testing.T) {
	ctx := context.Background()
	tokens := memory.NewTokenStore()
	agg := aggregate.New(aggregate.DefaultConfig())
	index := wallets.NewIndex(wallets.Config{DecayWindow: time.Minute})
	set := NewSet(DefaultConfig(), tokens, agg, index, log.New(testWriter{t}, "", 0))

	// Three sniper windows, but two have decayed by tick time.
	index.MarkSniperWindow("sw", "m1", 1000)
	index.MarkSniperWindow("sw", "m2", 2000)
	index.MarkSniperWindow("sw", "m3", 120_000)
	assert.Empty(t, set.OnTick(ctx, 130_000))
}
