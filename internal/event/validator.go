// Package event defines the wire payloads delivered by the venue stream and
// validates them into domain events.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"token-sentry/internal/domain"
)

// Transaction types carried in the txType field.
const (
	TxTypeCreate = "create"
	TxTypeBuy    = "buy"
	TxTypeSell   = "sell"
)

var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// Message is the raw venue payload for both creation and trade updates.
type Message struct {
	Signature       string `json:"signature"`
	Mint            string `json:"mint"`
	TraderPublicKey string `json:"traderPublicKey"`
	TxType          string `json:"txType"`
	SolAmount       int64  `json:"solAmount"` // lamports
	InitialBuy      int64  `json:"initialBuy"` // lamports, creation only
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Slot            int64  `json:"slot"`
	Timestamp       int64  `json:"timestamp"` // ms, 0 when the venue omits it
}

// MalformedEventError reports an input contract violation. Malformed events
// are discarded with a report and are never fatal.
type MalformedEventError struct {
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: field %q: %s", e.Field, e.Reason)
}

// Decode parses a raw venue message. Returns MalformedEventError on invalid JSON.
func Decode(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &MalformedEventError{Field: "payload", Reason: err.Error()}
	}
	return &m, nil
}

// IsCreation reports whether the message announces a new token.
func (m *Message) IsCreation() bool {
	return m.TxType == TxTypeCreate
}

// ValidateTrade checks a buy/sell message and converts it to a TradeEvent.
// receivedAt (ms) is used when the venue omits the timestamp.
// Pure function: the OutOfOrder flag is stamped later by the aggregator,
// which owns per-token slot state.
func ValidateTrade(m *Message, receivedAt int64) (*domain.TradeEvent, error) {
	if m.Signature == "" {
		return nil, &MalformedEventError{Field: "signature", Reason: "missing"}
	}
	if err := validateAddress("mint", m.Mint); err != nil {
		return nil, err
	}
	if err := validateAddress("traderPublicKey", m.TraderPublicKey); err != nil {
		return nil, err
	}
	if m.TxType != TxTypeBuy && m.TxType != TxTypeSell {
		return nil, &MalformedEventError{Field: "txType", Reason: fmt.Sprintf("unknown side %q", m.TxType)}
	}
	if m.SolAmount < 0 {
		return nil, &MalformedEventError{Field: "solAmount", Reason: "negative amount"}
	}
	if m.Slot <= 0 {
		return nil, &MalformedEventError{Field: "slot", Reason: "missing or non-positive"}
	}

	ts := m.Timestamp
	if ts == 0 {
		ts = receivedAt
	}

	return &domain.TradeEvent{
		ID:        m.Signature,
		Mint:      m.Mint,
		Wallet:    m.TraderPublicKey,
		Side:      m.TxType,
		Amount:    LamportsToSOL(m.SolAmount),
		Slot:      m.Slot,
		Timestamp: ts,
	}, nil
}

// ValidateCreation checks a create message and converts it to a CreationEvent.
func ValidateCreation(m *Message, receivedAt int64) (*domain.CreationEvent, error) {
	if m.Signature == "" {
		return nil, &MalformedEventError{Field: "signature", Reason: "missing"}
	}
	if err := validateAddress("mint", m.Mint); err != nil {
		return nil, err
	}
	if err := validateAddress("traderPublicKey", m.TraderPublicKey); err != nil {
		return nil, err
	}
	if m.TxType != TxTypeCreate {
		return nil, &MalformedEventError{Field: "txType", Reason: fmt.Sprintf("expected create, got %q", m.TxType)}
	}
	if m.InitialBuy < 0 {
		return nil, &MalformedEventError{Field: "initialBuy", Reason: "negative amount"}
	}
	if m.Slot <= 0 {
		return nil, &MalformedEventError{Field: "slot", Reason: "missing or non-positive"}
	}

	ts := m.Timestamp
	if ts == 0 {
		ts = receivedAt
	}

	return &domain.CreationEvent{
		ID:         m.Signature,
		Mint:       m.Mint,
		Creator:    m.TraderPublicKey,
		Name:       m.Name,
		Symbol:     m.Symbol,
		InitialBuy: LamportsToSOL(m.InitialBuy),
		Slot:       m.Slot,
		Timestamp:  ts,
	}, nil
}

// LamportsToSOL converts lamports to SOL as an exact decimal.
func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.NewFromInt(lamports).Div(lamportsPerSOL)
}

// validateAddress checks that the value is a base58-encoded 32-byte key.
func validateAddress(field, value string) error {
	if value == "" {
		return &MalformedEventError{Field: field, Reason: "missing"}
	}
	decoded, err := base58.Decode(value)
	if err != nil {
		return &MalformedEventError{Field: field, Reason: "not base58"}
	}
	if len(decoded) != 32 {
		return &MalformedEventError{Field: field, Reason: fmt.Sprintf("decoded length %d, want 32", len(decoded))}
	}
	return nil
}
