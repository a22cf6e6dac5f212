package classify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
	"token-sentry/internal/idhash"
	"token-sentry/internal/wallets"
)

// SniperWalletClassifier is the standing query over the wallet index: any
// wallet whose sniper-window participation count reaches the threshold is
// flagged on the next tick.
type SniperWalletClassifier struct {
	noopClassifier

	index    *wallets.Index
	dedup    *dedupSet
	minCount int
}

var _ Classifier = (*SniperWalletClassifier)(nil)

// NewSniperWalletClassifier creates the standing sniper-wallet classifier.
func NewSniperWalletClassifier(index *wallets.Index, dedup *dedupSet, minCount int) *SniperWalletClassifier {
	return &SniperWalletClassifier{index: index, dedup: dedup, minCount: minCount}
}

func (s *SniperWalletClassifier) Name() string { return "sniper_wallet" }

func (s *SniperWalletClassifier) OnTick(_ context.Context, now int64) ([]*domain.Classification, error) {
	var out []*domain.Classification
	for _, a := range s.index.TopRepeatWallets(s.minCount) {
		// Re-check against the decay-scoped count: TopRepeatWallets ranks by
		// lifetime participation.
		count := s.index.SniperWindowCount(a.Wallet, now)
		if count < s.minCount {
			continue
		}
		key := idhash.ClassificationKey(string(domain.KindSniperWallet), "", a.Wallet, 0)
		if !s.dedup.claim(key) {
			continue
		}
		out = append(out, newClassification(domain.KindSniperWallet, key, "", a.Wallet, decimal.NewFromInt(int64(count)), now))
	}
	return out, nil
}

// BotDeployerClassifier flags wallets whose trading spreads across many
// distinct tokens inside a short span, the signature of programmatic
// deployment rather than organic trading.
type BotDeployerClassifier struct {
	noopClassifier

	index     *wallets.Index
	dedup     *dedupSet
	minTokens int
	span      time.Duration
}

var _ Classifier = (*BotDeployerClassifier)(nil)

// NewBotDeployerClassifier creates the bot-deployer tick classifier.
func NewBotDeployerClassifier(index *wallets.Index, dedup *dedupSet, minTokens int, span time.Duration) *BotDeployerClassifier {
	return &BotDeployerClassifier{
		index:     index,
		dedup:     dedup,
		minTokens: minTokens,
		span:      span,
	}
}

func (b *BotDeployerClassifier) Name() string { return "bot_deployer" }

func (b *BotDeployerClassifier) OnTick(_ context.Context, now int64) ([]*domain.Classification, error) {
	var out []*domain.Classification
	for _, w := range b.index.Wallets() {
		count := b.index.DistinctTokensWithin(w, b.span, now)
		if count < b.minTokens {
			continue
		}
		key := idhash.ClassificationKey(string(domain.KindBotDeployer), "", w, 0)
		if !b.dedup.claim(key) {
			continue
		}
		out = append(out, newClassification(domain.KindBotDeployer, key, "", w, decimal.NewFromInt(int64(count)), now))
	}
	return out, nil
}
