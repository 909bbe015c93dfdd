// Package iprestrict enforces IP blacklists and whitelists with CIDR
// support and per-entry expiry.
package iprestrict

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/observability"
)

// Entry is one list entry: an exact IP or a CIDR block, optionally
// expiring. Expired entries are excluded from evaluation before they
// are pruned.
type Entry struct {
	Value     string
	ExpiresAt time.Time

	ip      net.IP
	network *net.IPNet
}

// NewEntry parses an IP or CIDR value. A zero expiresAt never expires.
func NewEntry(value string, expiresAt time.Time) (Entry, error) {
	e := Entry{Value: value, ExpiresAt: expiresAt}

	if strings.Contains(value, "/") {
		_, network, err := net.ParseCIDR(value)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid CIDR %q: %w", value, err)
		}
		e.network = network
		return e, nil
	}

	ip := net.ParseIP(value)
	if ip == nil {
		return Entry{}, fmt.Errorf("invalid IP %q", value)
	}
	e.ip = ip
	return e, nil
}

// IsExpired reports whether the entry has passed its expiry.
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Matches reports whether the entry covers ip.
func (e *Entry) Matches(ip net.IP) bool {
	if e.network != nil {
		return e.network.Contains(ip)
	}
	return e.ip.Equal(ip)
}

// Restrictor evaluates client IPs against the configured lists. A
// blacklisted IP is denied; when the whitelist is non-empty, any IP
// not on it is denied.
type Restrictor struct {
	logger observability.Logger
	now    func() time.Time

	mu        sync.RWMutex
	whitelist []Entry
	blacklist []Entry
}

// RestrictorOption configures a Restrictor.
type RestrictorOption func(*Restrictor)

// WithRestrictorLogger sets the logger.
func WithRestrictorLogger(logger observability.Logger) RestrictorOption {
	return func(r *Restrictor) {
		r.logger = logger
	}
}

// WithRestrictorClock sets the time source.
func WithRestrictorClock(now func() time.Time) RestrictorOption {
	return func(r *Restrictor) {
		r.now = now
	}
}

// NewRestrictor creates a restrictor with the given lists.
func NewRestrictor(whitelist, blacklist []Entry, opts ...RestrictorOption) *Restrictor {
	r := &Restrictor{
		logger:    observability.NopLogger(),
		now:       time.Now,
		whitelist: whitelist,
		blacklist: blacklist,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Replace swaps both lists. Used on configuration reload.
func (r *Restrictor) Replace(whitelist, blacklist []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.whitelist = whitelist
	r.blacklist = blacklist
}

// CheckAccess returns nil when the IP may proceed.
func (r *Restrictor) CheckAccess(clientIP string) *apierror.Error {
	ip := net.ParseIP(clientIP)
	if ip == nil {
		recordCheck("invalid_ip")
		return apierror.New(apierror.KindForbidden, apierror.CodeIPBlocked, "client IP could not be determined")
	}

	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.blacklist {
		e := &r.blacklist[i]
		if e.IsExpired(now) {
			continue
		}
		if e.Matches(ip) {
			recordCheck("blacklisted")
			return apierror.New(apierror.KindForbidden, apierror.CodeIPBlocked, "access from this IP is blocked")
		}
	}

	if len(r.whitelist) > 0 {
		whitelisted := false
		for i := range r.whitelist {
			e := &r.whitelist[i]
			if e.IsExpired(now) {
				continue
			}
			if e.Matches(ip) {
				whitelisted = true
				break
			}
		}
		if !whitelisted {
			recordCheck("not_whitelisted")
			return apierror.New(apierror.KindForbidden, apierror.CodeIPBlocked, "access from this IP is not allowed")
		}
	}

	recordCheck("allowed")
	return nil
}

// Prune removes expired entries from both lists.
func (r *Restrictor) Prune() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.whitelist = pruneExpired(r.whitelist, now)
	r.blacklist = pruneExpired(r.blacklist, now)
}

// StartPruning prunes periodically until ctx is cancelled.
func (r *Restrictor) StartPruning(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Prune()
			}
		}
	}()
}

// Sizes returns the current list sizes, including expired entries not
// yet pruned.
func (r *Restrictor) Sizes() (whitelist, blacklist int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.whitelist), len(r.blacklist)
}

func pruneExpired(entries []Entry, now time.Time) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		if !e.IsExpired(now) {
			kept = append(kept, e)
		}
	}
	return kept
}
