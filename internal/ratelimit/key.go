package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
)

// CounterKey derives the store key for a (rule, identifier) pair. The
// hash keeps raw identifiers (IPs, API key IDs) out of the backing
// store and yields fixed-length keys.
func CounterKey(ruleID, identifier string) string {
	h := sha256.New()
	h.Write([]byte(ruleID))
	h.Write([]byte{0})
	h.Write([]byte(identifier))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
