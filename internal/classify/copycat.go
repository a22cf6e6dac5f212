package classify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/idhash"
	"token-sentry/internal/storage"
	"token-sentry/internal/wallets"
)

// CopycatClassifier flags freshly created tokens whose (name, symbol)
// identity duplicates an earlier token created within the look-back range.
// The classification references the earliest matching original.
type CopycatClassifier struct {
	noopClassifier

	tokens   storage.TokenStore
	index    *wallets.Index
	dedup    *dedupSet
	lookback time.Duration
	sim      Similarity
}

var _ Classifier = (*CopycatClassifier)(nil)

// NewCopycatClassifier creates the copycat token classifier.
func NewCopycatClassifier(tokens storage.TokenStore, index *wallets.Index, dedup *dedupSet, lookback time.Duration, sim Similarity) *CopycatClassifier {
	return &CopycatClassifier{
		tokens:   tokens,
		index:    index,
		dedup:    dedup,
		lookback: lookback,
		sim:      sim,
	}
}

func (c *CopycatClassifier) Name() string { return "copycat" }

func (c *CopycatClassifier) OnTokenCreated(ctx context.Context, e *domain.CreationEvent) ([]*domain.Classification, error) {
	if e.Name == "" && e.Symbol == "" {
		return nil, nil
	}

	since := e.Timestamp - c.lookback.Milliseconds()
	candidates, err := c.tokens.GetCreatedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	// Candidates arrive ordered by creation time ASC, so the first match is
	// the original being copied.
	var original *domain.Token
	for _, t := range candidates {
		if t.Mint == e.Mint || t.CreatedAt > e.Timestamp {
			continue
		}
		if c.sim.Match(e.Name, e.Symbol, t.Name, t.Symbol) {
			original = t
			break
		}
	}
	if original == nil {
		return nil, nil
	}

	key := idhash.ClassificationKey(string(domain.KindCopycat), e.Mint, e.Creator, 0)
	if !c.dedup.claim(key) {
		return nil, nil
	}

	c.index.AssociateCopycat(e.Creator, e.Timestamp)

	cl := newClassification(domain.KindCopycat, key, e.Mint, e.Creator, decimal.NewFromInt(1), e.Timestamp)
	cl.Slot = e.Slot
	cl.EventID = e.ID
	cl.RelMint = original.Mint
	return []*domain.Classification{cl}, nil
}
