// Package ratelimit implements fixed-window rate limiting over a
// pluggable counter store.
package ratelimit

import (
	"sort"
	"strings"
	"time"

	"github.com/vyrodovalexey/policygw/internal/pathmatch"
)

// IdentifierType selects which request identity a rule counts.
type IdentifierType string

const (
	// IdentifierIP counts per client IP.
	IdentifierIP IdentifierType = "ip"

	// IdentifierAPIKey counts per authenticated API key.
	IdentifierAPIKey IdentifierType = "apiKey"

	// IdentifierUser counts per authenticated user.
	IdentifierUser IdentifierType = "user"
)

// Rule is one fixed-window rate limit rule.
type Rule struct {
	ID          string
	PathPattern string
	Methods     []string
	Enabled     bool
	Priority    int

	IdentifierType IdentifierType
	Window         time.Duration
	MaxRequests    int64
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

// RuleSet holds rules ordered by ascending priority.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet creates a rule set, sorting rules by ascending priority.
// The sort is stable so equal priorities keep their configured order.
func NewRuleSet(rules []*Rule) *RuleSet {
	sorted := make([]*Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &RuleSet{rules: sorted}
}

// Matching returns the enabled rules covering method and path, in
// priority order.
func (s *RuleSet) Matching(method, path string) []*Rule {
	var matched []*Rule
	for _, r := range s.rules {
		if r.AppliesTo(method, path) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Rules returns all rules in priority order.
func (s *RuleSet) Rules() []*Rule {
	return s.rules
}

// Find returns the rule with the given ID, or nil.
func (s *RuleSet) Find(id string) *Rule {
	for _, r := range s.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}
