package classify

import (
	"context"

	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/idhash"
	"token-sentry/internal/wallets"
)

// SniperClassifier flags closed windows whose combined trade count reaches
// the sniper minimum. It also records the sniper-window participation of
// every wallet in the window, which feeds the sniper-bot and sniper-wallet
// classifiers.
type SniperClassifier struct {
	noopClassifier

	index     *wallets.Index
	dedup     *dedupSet
	minTrades int
}

var _ Classifier = (*SniperClassifier)(nil)

// NewSniperClassifier creates the sniper window classifier.
func NewSniperClassifier(index *wallets.Index, dedup *dedupSet, minTrades int) *SniperClassifier {
	return &SniperClassifier{index: index, dedup: dedup, minTrades: minTrades}
}

func (s *SniperClassifier) Name() string { return "sniper" }

func (s *SniperClassifier) OnWindowClosed(_ context.Context, r *domain.WindowResult) ([]*domain.Classification, error) {
	if r.BuyCount+r.SellCount < s.minTrades {
		return nil, nil
	}

	// Participation is recorded even when the window itself was already
	// classified: each sniper window counts once per wallet.
	for _, w := range r.Wallets {
		s.index.MarkSniperWindow(w, r.Mint, r.ClosedAt)
	}

	key := idhash.ClassificationKey(string(domain.KindSniper), r.Mint, "", r.Seq)
	if !s.dedup.claim(key) {
		return nil, nil
	}

	c := newClassification(domain.KindSniper, key, r.Mint, "", r.Net, r.ClosedAt)
	c.WindowSeq = r.Seq
	return []*domain.Classification{c}, nil
}

// SniperBotClassifier incrementally flags wallets the moment their distinct
// sniped-token count crosses the threshold. It runs after SniperClassifier
// so participation counters are already updated for the closing window.
type SniperBotClassifier struct {
	noopClassifier

	index     *wallets.Index
	dedup     *dedupSet
	minTrades int
	minTokens int
}

var _ Classifier = (*SniperBotClassifier)(nil)

// NewSniperBotClassifier creates the incremental sniper-bot classifier.
func NewSniperBotClassifier(index *wallets.Index, dedup *dedupSet, minTrades, minTokens int) *SniperBotClassifier {
	return &SniperBotClassifier{
		index:     index,
		dedup:     dedup,
		minTrades: minTrades,
		minTokens: minTokens,
	}
}

func (s *SniperBotClassifier) Name() string { return "sniper_bot" }

func (s *SniperBotClassifier) OnWindowClosed(_ context.Context, r *domain.WindowResult) ([]*domain.Classification, error) {
	if r.BuyCount+r.SellCount < s.minTrades {
		return nil, nil
	}

	var out []*domain.Classification
	for _, w := range r.Wallets {
		count := s.index.SnipedTokenCount(w)
		if count < s.minTokens {
			continue
		}
		key := idhash.ClassificationKey(string(domain.KindSniperBot), "", w, 0)
		if !s.dedup.claim(key) {
			continue
		}
		c := newClassification(domain.KindSniperBot, key, r.Mint, w, decimal.NewFromInt(int64(count)), r.ClosedAt)
		c.WindowSeq = r.Seq
		out = append(out, c)
	}
	return out, nil
}
