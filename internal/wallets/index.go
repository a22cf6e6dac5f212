// Package wallets maintains the per-wallet activity index used by the
// repeat-behavior classifiers.
package wallets

import (
	"sort"
	"sync"
	"time"

	"token-sentry/internal/domain"
)

// Config holds index parameters.
type Config struct {
	// DecayWindow scopes repeat-sniper counting to a rolling period.
	// Zero keeps all-time counters, matching the source system.
	DecayWindow time.Duration
}

type entry struct {
	activity     domain.WalletActivity
	snipedMints  map[string]struct{}
	sniperTimes  []int64          // sniper participation timestamps (ms)
	tokenLastTs  map[string]int64 // mint -> last trade timestamp (ms)
}

// Index owns all WalletActivity state. Counters are monotonic for the
// process lifetime.
type Index struct {
	mu      sync.RWMutex
	decayMs int64
	wallets map[string]*entry
}

// NewIndex creates a wallet activity index.
func NewIndex(cfg Config) *Index {
	return &Index{
		decayMs: cfg.DecayWindow.Milliseconds(),
		wallets: make(map[string]*entry),
	}
}

func (ix *Index) entryFor(wallet string) *entry {
	e, ok := ix.wallets[wallet]
	if !ok {
		e = &entry{
			activity:    domain.WalletActivity{Wallet: wallet},
			snipedMints: make(map[string]struct{}),
			tokenLastTs: make(map[string]int64),
		}
		ix.wallets[wallet] = e
	}
	return e
}

// Record updates counters for a trade. Every trade counts here regardless
// of amount; the bundle threshold does not apply to behavioral state.
func (ix *Index) Record(ev *domain.TradeEvent) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e := ix.entryFor(ev.Wallet)
	e.activity.TotalTrades++
	if ev.Timestamp > e.activity.LastSeen {
		e.activity.LastSeen = ev.Timestamp
	}
	if ev.Timestamp > e.tokenLastTs[ev.Mint] {
		e.tokenLastTs[ev.Mint] = ev.Timestamp
	}
}

// MarkSniperWindow records a wallet's participation in a sniper-flagged
// window for the given mint.
func (ix *Index) MarkSniperWindow(wallet, mint string, ts int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e := ix.entryFor(wallet)
	e.activity.SniperWindows++
	e.sniperTimes = append(e.sniperTimes, ts)
	if _, seen := e.snipedMints[mint]; !seen {
		e.snipedMints[mint] = struct{}{}
		e.activity.TokensSniped++
	}
	if ts > e.activity.LastSeen {
		e.activity.LastSeen = ts
	}
}

// AssociateCopycat records that the wallet deployed a copycat token.
func (ix *Index) AssociateCopycat(wallet string, ts int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e := ix.entryFor(wallet)
	e.activity.CopycatTokens++
	if ts > e.activity.LastSeen {
		e.activity.LastSeen = ts
	}
}

// Snapshot returns a copy of the wallet's activity record.
func (ix *Index) Snapshot(wallet string) (domain.WalletActivity, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.wallets[wallet]
	if !ok {
		return domain.WalletActivity{}, false
	}
	return e.activity, true
}

// SniperWindowCount returns the wallet's sniper participation count,
// scoped to the decay window when one is configured.
func (ix *Index) SniperWindowCount(wallet string, now int64) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.wallets[wallet]
	if !ok {
		return 0
	}
	return ix.sniperCountLocked(e, now)
}

func (ix *Index) sniperCountLocked(e *entry, now int64) int {
	if ix.decayMs == 0 {
		return e.activity.SniperWindows
	}
	cutoff := now - ix.decayMs
	count := 0
	for _, ts := range e.sniperTimes {
		if ts >= cutoff {
			count++
		}
	}
	return count
}

// SnipedTokenCount returns the number of distinct tokens the wallet
// participated in sniper-flagged windows for.
func (ix *Index) SnipedTokenCount(wallet string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.wallets[wallet]
	if !ok {
		return 0
	}
	return e.activity.TokensSniped
}

// IsRepeatSniper reports whether the wallet reached minOccurrences sniper
// window participations.
func (ix *Index) IsRepeatSniper(wallet string, minOccurrences int, now int64) bool {
	return ix.SniperWindowCount(wallet, now) >= minOccurrences
}

// TopRepeatWallets returns wallets with at least minOccurrences sniper
// participations, ordered by occurrence count descending, ties broken by
// most recent activity first.
func (ix *Index) TopRepeatWallets(minOccurrences int) []*domain.WalletActivity {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var result []*domain.WalletActivity
	for _, e := range ix.wallets {
		if e.activity.SniperWindows >= minOccurrences {
			cp := e.activity
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SniperWindows != result[j].SniperWindows {
			return result[i].SniperWindows > result[j].SniperWindows
		}
		if result[i].LastSeen != result[j].LastSeen {
			return result[i].LastSeen > result[j].LastSeen
		}
		return result[i].Wallet < result[j].Wallet
	})

	return result
}

// DistinctTokensWithin returns how many distinct tokens the wallet traded
// in [now-span, now]. Used by bot-deployer detection.
func (ix *Index) DistinctTokensWithin(wallet string, span time.Duration, now int64) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.wallets[wallet]
	if !ok {
		return 0
	}

	cutoff := now - span.Milliseconds()
	count := 0
	for _, ts := range e.tokenLastTs {
		if ts >= cutoff {
			count++
		}
	}
	return count
}

// Wallets returns all tracked wallet addresses. Order is unspecified.
func (ix *Index) Wallets() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, len(ix.wallets))
	for w := range ix.wallets {
		out = append(out, w)
	}
	return out
}

// Size returns the number of tracked wallets.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.wallets)
}
