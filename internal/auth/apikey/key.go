// Package apikey implements API key authentication: extraction,
// lookup, and validation against per-key path and IP allow-lists.
package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Key is one provisioned API key. The secret is held as either a
// sha256 digest of the plaintext or a bcrypt hash, never the plaintext
// itself.
type Key struct {
	ID   string
	Name string

	// AllowedPaths restricts the key to matching paths. Empty allows all.
	AllowedPaths []string

	// AllowedIPs restricts the key to matching client IPs or CIDR
	// blocks. Empty allows all.
	AllowedIPs []string

	// RateLimitPerSecond is an optional per-key limit enforced after
	// successful authentication. Zero means no per-key limit.
	RateLimitPerSecond int

	Enabled   bool
	ExpiresAt time.Time

	digest     [sha256.Size]byte
	hasDigest  bool
	bcryptHash []byte
}

// NewKey creates a key whose secret is the given plaintext value.
func NewKey(id, name, value string) *Key {
	return &Key{
		ID:        id,
		Name:      name,
		Enabled:   true,
		digest:    sha256.Sum256([]byte(value)),
		hasDigest: true,
	}
}

// NewHashedKey creates a key whose secret is a bcrypt hash.
func NewHashedKey(id, name, hash string) *Key {
	return &Key{
		ID:         id,
		Name:       name,
		Enabled:    true,
		bcryptHash: []byte(hash),
	}
}

// Matches reports whether the presented value is this key's secret.
// Digest comparison is constant time; bcrypt comparison is constant
// time by construction.
func (k *Key) Matches(value string) bool {
	if k.hasDigest {
		presented := sha256.Sum256([]byte(value))
		return subtle.ConstantTimeCompare(presented[:], k.digest[:]) == 1
	}
	if len(k.bcryptHash) > 0 {
		return bcrypt.CompareHashAndPassword(k.bcryptHash, []byte(value)) == nil
	}
	return false
}

// IsExpired reports whether the key has passed its expiry. Keys
// without an expiry never expire.
func (k *Key) IsExpired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt)
}
