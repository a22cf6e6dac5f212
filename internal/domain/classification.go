package domain

import "github.com/shopspring/decimal"

// Kind identifies a behavioral classification.
type Kind string

// Classification kinds
const (
	KindDeveloperSold   Kind = "DEVELOPER_SOLD"
	KindDeveloperBought Kind = "DEVELOPER_BOUGHT"
	KindCopycat         Kind = "COPYCAT"
	KindSniper          Kind = "SNIPER"
	KindSniperBot       Kind = "SNIPER_BOT"
	KindSniperWallet    Kind = "SNIPER_WALLET"
	KindBotDeployer     Kind = "BOT_DEPLOYER"
)

// Classification is an append-only behavioral fact with its evidence.
// Never mutated after creation; superseded only by new records.
type Classification struct {
	ID        string          // record id (uuid)
	Kind      Kind            // classification kind
	Mint      string          // token the evidence refers to ("" for pure wallet facts)
	Wallet    string          // wallet the evidence refers to
	DedupKey  string          // deterministic idempotency key (kind|mint|wallet|ref)
	WindowSeq int64           // window reference, 0 when not window-scoped
	Slot      int64           // slot reference, 0 when not slot-scoped
	EventID   string          // triggering event id, "" for tick-driven kinds
	RelMint   string          // related token (copycat original), "" otherwise
	Metric    decimal.Decimal // computed metric (net, count, token spread)
	Timestamp int64           // emission timestamp (ms)
}
