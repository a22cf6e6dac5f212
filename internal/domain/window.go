package domain

import "github.com/shopspring/decimal"

// Window outcome constants
const (
	OutcomeProfit    = "profit"
	OutcomeLoss      = "loss"
	OutcomeBreakeven = "breakeven"
)

// TradeWindow is the active fixed-duration accumulation for one token.
// One active window per token; a new window opens on the first trade
// after the previous one closed.
type TradeWindow struct {
	Mint      string          // token mint address
	Seq       int64           // window sequence for the mint, starting at 1
	OpenedAt  int64           // open timestamp (ms)
	BuyTotal  decimal.Decimal // sum of buy amounts
	SellTotal decimal.Decimal // sum of sell amounts
	BuyCount  int             // number of buys
	SellCount int             // number of sells
}

// TradeCount returns the combined buy+sell count.
func (w *TradeWindow) TradeCount() int {
	return w.BuyCount + w.SellCount
}

// WindowResult is produced exactly once when a TradeWindow closes.
type WindowResult struct {
	Mint      string
	Seq       int64
	OpenedAt  int64 // ms
	ClosedAt  int64 // ms
	BuyTotal  decimal.Decimal
	SellTotal decimal.Decimal
	BuyCount  int
	SellCount int
	Net       decimal.Decimal // buy total - sell total
	Outcome   string          // "profit" | "loss" | "breakeven"
	Wallets   []string        // participating wallets, sorted
}

// Result closes the window at ts and computes net and outcome.
func (w *TradeWindow) Result(ts int64) *WindowResult {
	net := w.BuyTotal.Sub(w.SellTotal)
	return &WindowResult{
		Mint:      w.Mint,
		Seq:       w.Seq,
		OpenedAt:  w.OpenedAt,
		ClosedAt:  ts,
		BuyTotal:  w.BuyTotal,
		SellTotal: w.SellTotal,
		BuyCount:  w.BuyCount,
		SellCount: w.SellCount,
		Net:       net,
		Outcome:   ClassifyNet(net),
	}
}

// ClassifyNet maps a net amount to its outcome label.
// Exact zero is breakeven; no tolerance is applied.
func ClassifyNet(net decimal.Decimal) string {
	switch net.Sign() {
	case 1:
		return OutcomeProfit
	case -1:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}
