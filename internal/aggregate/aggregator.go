// Package aggregate maintains per-token rolling state: the active fixed
// duration trade window and the slot-keyed bundle index.
package aggregate

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
)

// Defaults mirroring the venue analysis parameters.
var (
	DefaultWindowDuration  = 5 * time.Second
	DefaultMinBundleAmount = decimal.RequireFromString("0.05")
)

const defaultShardCount = 16

// Config holds aggregator parameters.
type Config struct {
	// WindowDuration is the fixed trade window length.
	WindowDuration time.Duration
	// MinBundleAmount is the minimum per-trade amount for bundle inclusion.
	// Trades below it still count toward window totals and wallet activity.
	MinBundleAmount decimal.Decimal
	// ShardCount partitions token state to avoid cross-token contention.
	ShardCount int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		WindowDuration:  DefaultWindowDuration,
		MinBundleAmount: DefaultMinBundleAmount,
		ShardCount:      defaultShardCount,
	}
}

// tokenState is the per-token state owned by the aggregator.
type tokenState struct {
	window       *domain.TradeWindow // nil when no window is active
	windowSeq    int64               // last assigned window sequence
	highestSlot  int64               // highest slot observed for the mint
	participants map[string]struct{} // wallets seen in the active window
	bundles      map[int64]*domain.Bundle
	dirtySlots   map[int64]struct{} // bundle slots touched since the last drain
}

func (st *tokenState) openWindow(mint string, openedAt int64) {
	st.windowSeq++
	st.window = &domain.TradeWindow{
		Mint:     mint,
		Seq:      st.windowSeq,
		OpenedAt: openedAt,
	}
	st.participants = make(map[string]struct{})
}

func (st *tokenState) closeWindow(closedAt int64) *domain.WindowResult {
	result := st.window.Result(closedAt)
	result.Wallets = make([]string, 0, len(st.participants))
	for w := range st.participants {
		result.Wallets = append(result.Wallets, w)
	}
	sort.Strings(result.Wallets)
	st.window = nil
	st.participants = nil
	return result
}

type shard struct {
	mu     sync.Mutex
	tokens map[string]*tokenState
}

// Aggregator owns TradeWindow and Bundle state for all tokens.
// State is sharded by mint so tokens never contend with each other.
type Aggregator struct {
	cfg      Config
	windowMs int64
	shards   []*shard
}

// New creates an aggregator with the given configuration.
func New(cfg Config) *Aggregator {
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = DefaultWindowDuration
	}
	if cfg.MinBundleAmount.IsZero() {
		cfg.MinBundleAmount = DefaultMinBundleAmount
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = defaultShardCount
	}

	shards := make([]*shard, cfg.ShardCount)
	for i := range shards {
		shards[i] = &shard{tokens: make(map[string]*tokenState)}
	}

	return &Aggregator{
		cfg:      cfg,
		windowMs: cfg.WindowDuration.Milliseconds(),
		shards:   shards,
	}
}

func (a *Aggregator) shardFor(mint string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(mint))
	return a.shards[int(h.Sum32())%len(a.shards)]
}

func (s *shard) state(mint string) *tokenState {
	st, ok := s.tokens[mint]
	if !ok {
		st = &tokenState{
			bundles:    make(map[int64]*domain.Bundle),
			dirtySlots: make(map[int64]struct{}),
		}
		s.tokens[mint] = st
	}
	return st
}

// OnTokenCreated registers the token and opens an empty window at creation
// time so the immediate post-creation burst falls into one window.
// Idempotent: a second creation for the same mint is a no-op.
func (a *Aggregator) OnTokenCreated(e *domain.CreationEvent) {
	sh := a.shardFor(e.Mint)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.state(e.Mint)
	if st.windowSeq > 0 || st.window != nil {
		return
	}
	if e.Slot > st.highestSlot {
		st.highestSlot = e.Slot
	}
	st.openWindow(e.Mint, e.Timestamp)
}

// OnTrade applies a trade to the active window and the slot bundle.
// Stamps the OutOfOrder flag on the event. Returns a WindowResult when the
// trade causes the active window to close, else nil.
//
// Policies (deliberately different, see bundle vs window reporting):
//   - bundles take only trades with amount >= MinBundleAmount, folded by
//     slot regardless of window closure;
//   - windows take every trade regardless of amount, but an out-of-order
//     trade never reopens or joins a window that closed before it arrived.
func (a *Aggregator) OnTrade(e *domain.TradeEvent) *domain.WindowResult {
	sh := a.shardFor(e.Mint)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.state(e.Mint)

	if e.Slot < st.highestSlot {
		e.OutOfOrder = true
	} else {
		st.highestSlot = e.Slot
	}

	// Bundle accumulation by slot, threshold-filtered.
	if e.Amount.Cmp(a.cfg.MinBundleAmount) >= 0 {
		b, ok := st.bundles[e.Slot]
		if !ok {
			b = &domain.Bundle{Mint: e.Mint, Slot: e.Slot}
			st.bundles[e.Slot] = b
		}
		if e.Side == domain.TradeSideBuy {
			b.BuyTotal = b.BuyTotal.Add(e.Amount)
		} else {
			b.SellTotal = b.SellTotal.Add(e.Amount)
		}
		b.TradeCount++
		st.dirtySlots[e.Slot] = struct{}{}
	}

	// Window accumulation, unfiltered.
	var result *domain.WindowResult

	if st.window != nil && e.Timestamp-st.window.OpenedAt >= a.windowMs {
		// This trade arrives past the active window's duration: the window
		// closes first and the trade belongs to the next one.
		result = st.closeWindow(st.window.OpenedAt + a.windowMs)
	}

	if st.window == nil {
		if e.OutOfOrder {
			// Late trades never open a window; the window they belonged to
			// already closed without them.
			return result
		}
		st.openWindow(e.Mint, e.Timestamp)
	}

	if e.Side == domain.TradeSideBuy {
		st.window.BuyTotal = st.window.BuyTotal.Add(e.Amount)
		st.window.BuyCount++
	} else {
		st.window.SellTotal = st.window.SellTotal.Add(e.Amount)
		st.window.SellCount++
	}
	st.participants[e.Wallet] = struct{}{}

	return result
}

// CloseExpired force-closes windows whose duration elapsed by now (ms),
// even with no new trades. Each window closes exactly once; calling twice
// with no trades in between is a no-op the second time.
func (a *Aggregator) CloseExpired(now int64) []*domain.WindowResult {
	var results []*domain.WindowResult
	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.tokens {
			if st.window != nil && now-st.window.OpenedAt >= a.windowMs {
				results = append(results, st.closeWindow(st.window.OpenedAt+a.windowMs))
			}
		}
		sh.mu.Unlock()
	}
	return results
}

// FlushAll closes every active window regardless of elapsed duration.
// Called once on shutdown as the final flush.
func (a *Aggregator) FlushAll(now int64) []*domain.WindowResult {
	var results []*domain.WindowResult
	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.tokens {
			if st.window != nil {
				results = append(results, st.closeWindow(now))
			}
		}
		sh.mu.Unlock()
	}
	return results
}

// ActiveWindow returns a snapshot of the token's active window, if any.
func (a *Aggregator) ActiveWindow(mint string) (*domain.TradeWindow, bool) {
	sh := a.shardFor(mint)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.tokens[mint]
	if !ok || st.window == nil {
		return nil, false
	}
	cp := *st.window
	return &cp, true
}

// ActiveWindowCount returns the number of currently open windows.
func (a *Aggregator) ActiveWindowCount() int {
	count := 0
	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.tokens {
			if st.window != nil {
				count++
			}
		}
		sh.mu.Unlock()
	}
	return count
}

// TokenCount returns the number of tokens with aggregation state.
func (a *Aggregator) TokenCount() int {
	count := 0
	for _, sh := range a.shards {
		sh.mu.Lock()
		count += len(sh.tokens)
		sh.mu.Unlock()
	}
	return count
}

// HighestSlot returns the highest slot observed across all tokens,
// or zero when no trades have been seen.
func (a *Aggregator) HighestSlot() int64 {
	var highest int64
	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.tokens {
			if st.highestSlot > highest {
				highest = st.highestSlot
			}
		}
		sh.mu.Unlock()
	}
	return highest
}

// BundleSummary returns a read-only snapshot of the bundle for (mint, slot).
// The second return is false when no qualifying trade was seen for the slot.
func (a *Aggregator) BundleSummary(mint string, slot int64) (*domain.Bundle, bool) {
	sh := a.shardFor(mint)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.tokens[mint]
	if !ok {
		return nil, false
	}
	b, ok := st.bundles[slot]
	if !ok {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// DrainDirtyBundles returns snapshots of every bundle touched since the
// previous drain that holds at least two trades, and clears the dirty
// marks. Single-trade slots stay marked until they either qualify or go
// quiet. Used to archive bundle snapshots periodically; re-draining an
// updated slot yields a fresher snapshot that supersedes the earlier one.
func (a *Aggregator) DrainDirtyBundles() []*domain.Bundle {
	var result []*domain.Bundle
	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.tokens {
			for slot := range st.dirtySlots {
				b, ok := st.bundles[slot]
				if !ok || b.TradeCount < 2 {
					continue
				}
				cp := *b
				result = append(result, &cp)
				delete(st.dirtySlots, slot)
			}
		}
		sh.mu.Unlock()
	}
	sortBundles(result)
	return result
}

// TokenBundles returns snapshots of the token's bundles holding at least two
// trades and a combined total of at least minTotal, ordered by slot ASC.
// A single trade per slot is not a bundle.
func (a *Aggregator) TokenBundles(mint string, minTotal decimal.Decimal) []*domain.Bundle {
	sh := a.shardFor(mint)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.tokens[mint]
	if !ok {
		return nil
	}

	var result []*domain.Bundle
	for _, b := range st.bundles {
		if b.TradeCount < 2 {
			continue
		}
		if b.BuyTotal.Add(b.SellTotal).Cmp(minTotal) < 0 {
			continue
		}
		cp := *b
		result = append(result, &cp)
	}

	sortBundles(result)
	return result
}
