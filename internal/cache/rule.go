// Package cache implements TTL response caching with per-rule vary-by
// key derivation and a pluggable store.
package cache

import (
	"sort"
	"strings"
	"time"

	"github.com/vyrodovalexey/policygw/internal/pathmatch"
)

// Rule is one response cache rule. Among rules matching the same path
// the first by ascending priority applies.
type Rule struct {
	ID          string
	PathPattern string
	Methods     []string
	Enabled     bool
	Priority    int

	TTL time.Duration

	VaryByQueryParams bool
	VaryByHeaders     bool
	VaryHeaders       []string
}

// AppliesTo reports whether the rule covers the given method and path.
// Disabled rules never apply. An empty method list covers all methods.
func (r *Rule) AppliesTo(method, path string) bool {
	if !r.Enabled {
		return false
	}
	if len(r.Methods) > 0 && !containsMethod(r.Methods, method) {
		return false
	}
	return pathmatch.Match(r.PathPattern, path)
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// RuleSet holds cache rules ordered by ascending priority.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet creates a rule set sorted by ascending priority.
func NewRuleSet(rules []*Rule) *RuleSet {
	sorted := make([]*Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &RuleSet{rules: sorted}
}

// Match returns the first enabled rule covering method and path, or nil.
func (s *RuleSet) Match(method, path string) *Rule {
	for _, r := range s.rules {
		if r.AppliesTo(method, path) {
			return r
		}
	}
	return nil
}

// Rules returns all rules in priority order.
func (s *RuleSet) Rules() []*Rule {
	return s.rules
}
