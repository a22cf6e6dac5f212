package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ClassificationKey computes a deterministic dedup key using SHA256.
// Formula: SHA256(kind|mint|wallet|ref)
// Returns hex-encoded hash (64 characters).
//
// ref scopes the evidence: window sequence for window-bound kinds,
// slot for slot-bound kinds, threshold occurrence for rolling kinds.
func ClassificationKey(kind, mint, wallet string, ref int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", kind, mint, wallet, ref)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
