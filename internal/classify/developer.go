package classify

import (
	"context"
	"errors"
	"sync"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/domain"
	"token-sentry/internal/idhash"
	"token-sentry/internal/storage"
)

// DeveloperClassifier flags trades placed by the token's creator wallet.
// A sell emits DEVELOPER_SOLD, a buy DEVELOPER_BOUGHT, once per
// (token, window).
type DeveloperClassifier struct {
	noopClassifier

	tokens storage.TokenStore
	agg    *aggregate.Aggregator
	dedup  *dedupSet

	// creator cache avoids a store round-trip per trade. Hooks run on
	// multiple engine workers.
	mu       sync.RWMutex
	creators map[string]string
}

var _ Classifier = (*DeveloperClassifier)(nil)

// NewDeveloperClassifier creates the developer activity classifier.
func NewDeveloperClassifier(tokens storage.TokenStore, agg *aggregate.Aggregator, dedup *dedupSet) *DeveloperClassifier {
	return &DeveloperClassifier{
		tokens:   tokens,
		agg:      agg,
		dedup:    dedup,
		creators: make(map[string]string),
	}
}

func (d *DeveloperClassifier) Name() string { return "developer" }

func (d *DeveloperClassifier) OnTokenCreated(_ context.Context, e *domain.CreationEvent) ([]*domain.Classification, error) {
	d.mu.Lock()
	d.creators[e.Mint] = e.Creator
	d.mu.Unlock()
	return nil, nil
}

func (d *DeveloperClassifier) OnTrade(ctx context.Context, e *domain.TradeEvent) ([]*domain.Classification, error) {
	d.mu.RLock()
	creator, ok := d.creators[e.Mint]
	d.mu.RUnlock()
	if !ok {
		tok, err := d.tokens.GetByMint(ctx, e.Mint)
		if errors.Is(err, storage.ErrNotFound) {
			// Token created before this process started watching.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		creator = tok.Creator
		d.mu.Lock()
		d.creators[e.Mint] = creator
		d.mu.Unlock()
	}
	if e.Wallet != creator {
		return nil, nil
	}

	kind := domain.KindDeveloperBought
	if e.Side == domain.TradeSideSell {
		kind = domain.KindDeveloperSold
	}

	// One classification per (token, window): key on the active window seq.
	// A late trade can land with no window open (the one it belonged to
	// already closed); those key on the slot, negated so they never collide
	// with window sequences, which start at 1.
	var seq int64
	ref := -e.Slot
	if w, ok := d.agg.ActiveWindow(e.Mint); ok {
		seq = w.Seq
		ref = seq
	}
	key := idhash.ClassificationKey(string(kind), e.Mint, e.Wallet, ref)
	if !d.dedup.claim(key) {
		return nil, nil
	}

	c := newClassification(kind, key, e.Mint, e.Wallet, e.Amount, e.Timestamp)
	c.WindowSeq = seq
	c.Slot = e.Slot
	c.EventID = e.ID
	return []*domain.Classification{c}, nil
}
