package apikey

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the limiter map. When exceeded the map is
// dropped and rebuilt, trading brief amnesia for bounded memory.
const maxTrackedKeys = 10000

// RateGate enforces each key's optional per-second request limit with
// a token bucket per key. Safe for concurrent use.
type RateGate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateGate creates an empty gate.
func NewRateGate() *RateGate {
	return &RateGate{limiters: make(map[string]*rate.Limiter)}
}

// Allow consumes one token from the key's bucket, creating it on first
// sight. A changed per-second limit (config reload) replaces the
// bucket. Burst equals the per-second limit.
func (g *RateGate) Allow(keyID string, perSecond int) bool {
	if perSecond <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.limiters[keyID]
	if !ok || limiter.Limit() != rate.Limit(perSecond) {
		if len(g.limiters) > maxTrackedKeys {
			g.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		g.limiters[keyID] = limiter
	}

	return limiter.Allow()
}
