package domain

import "github.com/shopspring/decimal"

// Bundle groups the trades of one token within one slot whose individual
// amount meets the configured minimum. Used for economic-significance
// reporting; behavioral detection uses the unfiltered TradeWindow instead.
type Bundle struct {
	Mint       string          // token mint address
	Slot       int64           // slot number
	BuyTotal   decimal.Decimal // sum of qualifying buy amounts
	SellTotal  decimal.Decimal // sum of qualifying sell amounts
	TradeCount int             // number of qualifying trades
}

// Net returns buy total - sell total for the bundle.
func (b *Bundle) Net() decimal.Decimal {
	return b.BuyTotal.Sub(b.SellTotal)
}

// Outcome returns the profit/loss/breakeven label for the bundle net.
func (b *Bundle) Outcome() string {
	return ClassifyNet(b.Net())
}
