package classify

import "time"

// Default classifier thresholds.
const (
	DefaultSniperMinTrades      = 5
	DefaultSniperBotMinTokens   = 3
	DefaultSniperWalletMinCount = 3
	DefaultBotDeployerMinTokens = 4
	DefaultBotDeployerSpan      = 10 * time.Minute
	DefaultCopycatLookback      = 10 * time.Minute
)

// Config holds classifier thresholds.
type Config struct {
	// SniperMinTrades flags a closed window as sniper activity when its
	// combined buy+sell count reaches this value.
	SniperMinTrades int

	// SniperBotMinTokens is the distinct-sniped-token count at which a
	// wallet is classified as a sniper bot.
	SniperBotMinTokens int

	// SniperWalletMinCount is the sniper-window participation count for
	// the standing SNIPER_WALLET query.
	SniperWalletMinCount int

	// BotDeployerMinTokens and BotDeployerSpan flag wallets trading this
	// many distinct tokens inside the span.
	BotDeployerMinTokens int
	BotDeployerSpan      time.Duration

	// CopycatLookback bounds the creation look-back for copycat matches.
	CopycatLookback time.Duration

	// Similarity decides whether two token identities match. Defaults to
	// exact (name, symbol) comparison.
	Similarity Similarity
}

// DefaultConfig returns classifier defaults.
func DefaultConfig() Config {
	return Config{
		SniperMinTrades:      DefaultSniperMinTrades,
		SniperBotMinTokens:   DefaultSniperBotMinTokens,
		SniperWalletMinCount: DefaultSniperWalletMinCount,
		BotDeployerMinTokens: DefaultBotDeployerMinTokens,
		BotDeployerSpan:      DefaultBotDeployerSpan,
		CopycatLookback:      DefaultCopycatLookback,
		Similarity:           ExactSimilarity{},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SniperMinTrades <= 0 {
		c.SniperMinTrades = d.SniperMinTrades
	}
	if c.SniperBotMinTokens <= 0 {
		c.SniperBotMinTokens = d.SniperBotMinTokens
	}
	if c.SniperWalletMinCount <= 0 {
		c.SniperWalletMinCount = d.SniperWalletMinCount
	}
	if c.BotDeployerMinTokens <= 0 {
		c.BotDeployerMinTokens = d.BotDeployerMinTokens
	}
	if c.BotDeployerSpan <= 0 {
		c.BotDeployerSpan = d.BotDeployerSpan
	}
	if c.CopycatLookback <= 0 {
		c.CopycatLookback = d.CopycatLookback
	}
	if c.Similarity == nil {
		c.Similarity = d.Similarity
	}
	return c
}
