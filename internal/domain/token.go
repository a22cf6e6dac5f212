package domain

// Token represents a tradable token observed on the venue.
// Created on first creation-event observation and immutable afterwards.
type Token struct {
	Mint      string // token mint address (unique)
	Creator   string // wallet that created the token
	Name      string // token name
	Symbol    string // token symbol
	Slot      int64  // slot of the creation event
	CreatedAt int64  // creation timestamp (ms)
}
