// Package store provides counter backends for fixed-window rate limiting.
package store

import (
	"context"
	"time"
)

// Store is the counter backend for fixed-window rate limiting. Windows
// are aligned: the window containing time t starts at t truncated to the
// window length, so all instances sharing a backend agree on boundaries.
type Store interface {
	// Increment atomically increments the counter for key in the
	// current window, creating a fresh window if the previous one
	// expired. It returns the resulting count and the window start.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)

	// Count returns the current window counter for key without side
	// effects. A missing or expired window reports zero with the
	// current window start.
	Count(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)

	// Reset removes the counter for key.
	Reset(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// windowStart returns the aligned start of the window containing now.
// Alignment is relative to the Unix epoch in milliseconds, matching the
// Redis script arithmetic.
func windowStart(now time.Time, window time.Duration) time.Time {
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return time.UnixMilli(now.UnixMilli() / ms * ms)
}
