package domain

// WalletActivity holds the running per-wallet counters maintained by the
// activity index. Counters are monotonic for the process lifetime.
type WalletActivity struct {
	Wallet        string // wallet address
	TotalTrades   int    // all trades across tokens
	SniperWindows int    // sniper-flagged window participations
	TokensSniped  int    // distinct tokens with sniper participation
	CopycatTokens int    // copycat tokens associated with the wallet
	LastSeen      int64  // last activity timestamp (ms)
}
