package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/policygw/internal/ratelimit/store"
)

func newTestLimiter(t *testing.T, rules []*Rule, now *time.Time) *Limiter {
	t.Helper()

	clock := func() time.Time { return *now }
	s := store.NewMemoryStore(store.WithClock(clock))
	t.Cleanup(func() { _ = s.Close() })

	return NewLimiter(s, NewRuleSet(rules), WithClock(clock))
}

func TestCheckAndConsumeDeniesOverLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID:             "r1",
		PathPattern:    "/api/**",
		Enabled:        true,
		IdentifierType: IdentifierIP,
		Window:         60 * time.Second,
		MaxRequests:    3,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}

	for i := 0; i < 3; i++ {
		d := l.CheckAndConsume(context.Background(), "GET", "/api/users", ids)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, int64(3-i-1), d.Remaining)
	}

	d := l.CheckAndConsume(context.Background(), "GET", "/api/users", ids)
	assert.False(t, d.Allowed)
	assert.Equal(t, "r1", d.Rule.ID)
	assert.Equal(t, int64(3), d.Limit)
	assert.LessOrEqual(t, d.RetryAfter, 60*time.Second)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestCheckAndConsumeResetsAfterWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	rule := &Rule{
		ID:             "r1",
		PathPattern:    "/api/**",
		Enabled:        true,
		IdentifierType: IdentifierIP,
		Window:         60 * time.Second,
		MaxRequests:    1,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}

	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)
	assert.False(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)

	now = now.Add(60 * time.Second)

	d := l.CheckAndConsume(context.Background(), "GET", "/api/x", ids)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
}

func TestCheckAndConsumeAllMatchingRulesMustAllow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rules := []*Rule{
		{
			ID: "broad", PathPattern: "/api/**", Enabled: true, Priority: 1,
			IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 100,
		},
		{
			ID: "narrow", PathPattern: "/api/expensive", Enabled: true, Priority: 2,
			IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 1,
		},
	}
	l := newTestLimiter(t, rules, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}

	d := l.CheckAndConsume(context.Background(), "GET", "/api/expensive", ids)
	assert.True(t, d.Allowed)
	// The narrow rule is the most restrictive.
	assert.Equal(t, "narrow", d.Rule.ID)
	assert.Equal(t, int64(0), d.Remaining)

	d = l.CheckAndConsume(context.Background(), "GET", "/api/expensive", ids)
	assert.False(t, d.Allowed)
	assert.Equal(t, "narrow", d.Rule.ID)
}

func TestCheckAndConsumeSkipsDisabledRules(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID: "off", PathPattern: "/api/**", Enabled: false,
		IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 1,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}

	for i := 0; i < 5; i++ {
		assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)
	}
}

func TestCheckAndConsumeSkipsRulesWithoutIdentifier(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID: "per-key", PathPattern: "/api/**", Enabled: true,
		IdentifierType: IdentifierAPIKey, Window: time.Minute, MaxRequests: 1,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	// Unauthenticated request: no API key identity to count.
	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}

	for i := 0; i < 3; i++ {
		assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)
	}
}

func TestCheckAndConsumeSeparateIdentifiers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID: "r1", PathPattern: "/api/**", Enabled: true,
		IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 1,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x",
		map[IdentifierType]string{IdentifierIP: "1.1.1.1"}).Allowed)
	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x",
		map[IdentifierType]string{IdentifierIP: "2.2.2.2"}).Allowed)
	assert.False(t, l.CheckAndConsume(context.Background(), "GET", "/api/x",
		map[IdentifierType]string{IdentifierIP: "1.1.1.1"}).Allowed)
}

func TestCheckAndConsumeMethodFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID: "posts-only", PathPattern: "/api/**", Methods: []string{"POST"}, Enabled: true,
		IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 1,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}

	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)
	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)

	assert.True(t, l.CheckAndConsume(context.Background(), "POST", "/api/x", ids).Allowed)
	assert.False(t, l.CheckAndConsume(context.Background(), "POST", "/api/x", ids).Allowed)
}

func TestStatusIsSideEffectFree(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID: "r1", PathPattern: "/api/**", Enabled: true,
		IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 5,
	}
	l := newTestLimiter(t, []*Rule{rule}, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}
	l.CheckAndConsume(context.Background(), "GET", "/api/x", ids)

	for i := 0; i < 3; i++ {
		remaining, reset, err := l.Status(context.Background(), "r1", "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, int64(4), remaining)
		assert.Equal(t, now.Add(time.Minute), reset)
	}
}

func TestStatusUnknownRule(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(t, nil, &now)

	_, _, err := l.Status(context.Background(), "missing", "1.2.3.4")
	assert.Error(t, err)
}

func TestUpdateRules(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(t, nil, &now)

	ids := map[IdentifierType]string{IdentifierIP: "1.2.3.4"}
	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)

	l.UpdateRules(NewRuleSet([]*Rule{{
		ID: "r1", PathPattern: "/api/**", Enabled: true,
		IdentifierType: IdentifierIP, Window: time.Minute, MaxRequests: 1,
	}}))

	assert.True(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)
	assert.False(t, l.CheckAndConsume(context.Background(), "GET", "/api/x", ids).Allowed)
}

func TestCounterKeyDistinct(t *testing.T) {
	assert.NotEqual(t, CounterKey("r1", "a"), CounterKey("r1", "b"))
	assert.NotEqual(t, CounterKey("r1", "a"), CounterKey("r2", "a"))
	assert.Equal(t, CounterKey("r1", "a"), CounterKey("r1", "a"))
}
