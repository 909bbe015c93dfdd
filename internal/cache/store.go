package cache

import (
	"context"
	"net/http"
	"time"
)

// CachedResponse is an immutable stored response.
type CachedResponse struct {
	StatusCode int         `json:"statusCode"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CachedAt   time.Time   `json:"cachedAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

// IsExpired reports whether the response has passed its expiry.
func (r *CachedResponse) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store is the cache backend. Get reports a miss for absent and for
// expired entries; expired entries are reclaimed by a sweep, not on
// the read path.
type Store interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Put(ctx context.Context, key string, resp *CachedResponse) error
	Delete(ctx context.Context, key string) error
	Close() error
}
