package domain

import "github.com/shopspring/decimal"

// Trade side constants
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// TradeEvent represents a single validated trade on a token.
// Immutable; arrives from the venue transport. Slots are non-decreasing
// per token, not globally.
type TradeEvent struct {
	ID         string          // unique event id (transaction signature)
	Mint       string          // token mint address
	Wallet     string          // trading wallet address
	Side       string          // "buy" | "sell"
	Amount     decimal.Decimal // trade amount in SOL (non-negative)
	Slot       int64           // slot number
	Timestamp  int64           // Unix timestamp in milliseconds
	OutOfOrder bool            // set by the aggregator when slot < highest seen for the mint
}

// CreationEvent represents a token-creation observation.
type CreationEvent struct {
	ID         string          // unique event id (transaction signature)
	Mint       string          // token mint address
	Creator    string          // creator wallet address
	Name       string          // token name
	Symbol     string          // token symbol
	InitialBuy decimal.Decimal // creator's initial buy in SOL (may be zero)
	Slot       int64           // slot number
	Timestamp  int64           // Unix timestamp in milliseconds
}

// Token returns the immutable Token record for the creation event.
func (e *CreationEvent) Token() *Token {
	return &Token{
		Mint:      e.Mint,
		Creator:   e.Creator,
		Name:      e.Name,
		Symbol:    e.Symbol,
		Slot:      e.Slot,
		CreatedAt: e.Timestamp,
	}
}
