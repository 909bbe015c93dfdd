package pipeline

import (
	"context"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/pathmatch"
)

// Stage priorities fix the pipeline order. Lower runs first.
const (
	PriorityBotDetection   = 5
	PriorityRateLimit      = 10
	PriorityValidation     = 15
	PriorityIPRestriction  = 20
	PriorityAPIKey         = 30
	PriorityOAuth          = 32
	PriorityJWT            = 35
	PriorityCircuitBreaker = 40
	PriorityCacheLookup    = 50
)

// Stage is one admission policy. Execute returns nil to continue or an
// error to deny; a denial stops all later stages but the post-stages
// still run.
type Stage interface {
	Name() string
	Priority() int
	Execute(ctx context.Context, req *Request, rc *Context) *apierror.Error
}

// StagePolicy is the per-stage enable flag and path exclusions shared
// by every stage adapter.
type StagePolicy struct {
	Enabled      bool
	ExcludePaths []string
}

// Skip reports whether the stage should not run for the given path.
func (p StagePolicy) Skip(path string) bool {
	if !p.Enabled {
		return true
	}
	return pathmatch.MatchAny(path, p.ExcludePaths)
}
