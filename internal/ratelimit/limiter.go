package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/ratelimit/store"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether every matching rule admitted the request.
	Allowed bool

	// Rule is the denying rule, or the most restrictive admitting rule.
	// Nil when no rule matched.
	Rule *Rule

	// Limit and Remaining describe the counter of Rule.
	Limit     int64
	Remaining int64

	// Reset is when the window of Rule rolls over.
	Reset time.Time

	// RetryAfter is how long the client should wait. Set on denial.
	RetryAfter time.Duration
}

// Limiter evaluates rate limit rules against a counter store. All
// matching rules must admit a request; the first denying rule wins.
type Limiter struct {
	store  store.Store
	logger observability.Logger
	now    func() time.Time

	mu    sync.RWMutex
	rules *RuleSet
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter over the given store and rules.
func NewLimiter(s store.Store, rules *RuleSet, opts ...Option) *Limiter {
	l := &Limiter{
		store:  s,
		logger: observability.NopLogger(),
		now:    time.Now,
		rules:  rules,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.rules == nil {
		l.rules = NewRuleSet(nil)
	}

	return l
}

// UpdateRules swaps the rule set. Used on configuration reload.
func (l *Limiter) UpdateRules(rules *RuleSet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = rules
}

// RuleSet returns the current rule set.
func (l *Limiter) RuleSet() *RuleSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rules
}

// CheckAndConsume evaluates all matching rules for the request,
// incrementing each counter. Identifiers map identity types to their
// values for this request; rules whose identifier is absent are skipped.
//
// A store failure on one rule is logged and the rule is skipped rather
// than failing the request.
func (l *Limiter) CheckAndConsume(
	ctx context.Context,
	method, path string,
	identifiers map[IdentifierType]string,
) Decision {
	matched := l.RuleSet().Matching(method, path)
	if len(matched) == 0 {
		return Decision{Allowed: true}
	}

	decision := Decision{Allowed: true}

	for _, rule := range matched {
		identifier := identifiers[rule.IdentifierType]
		if identifier == "" {
			continue
		}

		count, windowStart, err := l.store.Increment(ctx, CounterKey(rule.ID, identifier), rule.Window)
		if err != nil {
			l.logger.Warn("rate limit store error, skipping rule",
				observability.String("rule_id", rule.ID),
				observability.Error(err),
			)
			recordCheck(rule.ID, "error")
			continue
		}

		reset := windowStart.Add(rule.Window)

		if count > rule.MaxRequests {
			recordCheck(rule.ID, "denied")

			retryAfter := reset.Sub(l.now())
			if retryAfter < 0 {
				retryAfter = 0
			}

			return Decision{
				Allowed:    false,
				Rule:       rule,
				Limit:      rule.MaxRequests,
				Remaining:  0,
				Reset:      reset,
				RetryAfter: retryAfter,
			}
		}

		recordCheck(rule.ID, "allowed")

		remaining := rule.MaxRequests - count
		if decision.Rule == nil || remaining < decision.Remaining {
			decision.Rule = rule
			decision.Limit = rule.MaxRequests
			decision.Remaining = remaining
			decision.Reset = reset
		}
	}

	return decision
}

// Status returns the remaining quota and reset time for a (rule,
// identifier) pair without consuming from the counter.
func (l *Limiter) Status(ctx context.Context, ruleID, identifier string) (remaining int64, reset time.Time, err error) {
	rule := l.RuleSet().Find(ruleID)
	if rule == nil {
		return 0, time.Time{}, fmt.Errorf("unknown rate limit rule %q", ruleID)
	}

	count, windowStart, err := l.store.Count(ctx, CounterKey(rule.ID, identifier), rule.Window)
	if err != nil {
		return 0, time.Time{}, err
	}

	remaining = rule.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, windowStart.Add(rule.Window), nil
}
