package apikey

import (
	"crypto/sha256"
	"sync"
)

// Store looks up keys by their presented secret value.
type Store interface {
	// Lookup returns the key matching the presented value, or nil.
	Lookup(value string) *Key
}

// MemoryStore is an in-memory key store. Digest-backed keys are
// indexed by digest for O(1) lookup; bcrypt-backed keys are scanned,
// which keeps hashed configs workable for small key counts.
type MemoryStore struct {
	mu       sync.RWMutex
	byDigest map[[sha256.Size]byte]*Key
	hashed   []*Key
}

// NewMemoryStore creates a store holding the given keys.
func NewMemoryStore(keys []*Key) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(keys)
	return s
}

// Replace swaps the key set. Used on configuration reload.
func (s *MemoryStore) Replace(keys []*Key) {
	byDigest := make(map[[sha256.Size]byte]*Key)
	var hashed []*Key

	for _, k := range keys {
		if k.hasDigest {
			byDigest[k.digest] = k
		} else if len(k.bcryptHash) > 0 {
			hashed = append(hashed, k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDigest = byDigest
	s.hashed = hashed
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(value string) *Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	digest := sha256.Sum256([]byte(value))
	if k, ok := s.byDigest[digest]; ok {
		return k
	}

	for _, k := range s.hashed {
		if k.Matches(value) {
			return k
		}
	}

	return nil
}
