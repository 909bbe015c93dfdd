package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/botdetect"
	"github.com/vyrodovalexey/policygw/internal/cache"
	"github.com/vyrodovalexey/policygw/internal/circuitbreaker"
	"github.com/vyrodovalexey/policygw/internal/ratelimit"
)

// Principal is the authenticated identity established by an auth stage.
type Principal struct {
	// Type is the credential kind: "apiKey", "oauth", or "jwt".
	Type string

	// ID is the stable identity: key ID, token subject.
	ID string

	// Name is a display name, when the credential carries one.
	Name string
}

// Context carries typed per-request state between stages. Fields are
// written by the stage that owns them and read by later stages and the
// post-stages; no stringly-typed attribute bag.
type Context struct {
	TraceID   string
	StartedAt time.Time

	Principal *Principal
	Bot       *botdetect.Result
	RateLimit *ratelimit.Decision

	CacheRule *cache.Rule
	CacheKey  string
	CacheHit  bool
	Cached    *cache.CachedResponse

	Breaker *circuitbreaker.Breaker

	// Denial is set when a stage rejects the request, along with the
	// name of the denying stage.
	Denial      *apierror.Error
	DenialStage string
}

// NewContext creates a request context with a fresh trace ID.
func NewContext(startedAt time.Time) *Context {
	return &Context{
		TraceID:   uuid.NewString(),
		StartedAt: startedAt,
	}
}
