package circuitbreaker

import (
	"sort"
	"sync"

	"github.com/vyrodovalexey/policygw/internal/observability"
)

// Registry holds one breaker per derived route name, created lazily.
// It is an owned object rather than process-global state so tests and
// reloads can build isolated instances.
type Registry struct {
	config Config
	logger observability.Logger
	opts   []BreakerOption

	breakers sync.Map
}

// NewRegistry creates a registry applying config to every new breaker.
// The extra options are passed through to each breaker.
func NewRegistry(config Config, logger observability.Logger, opts ...BreakerOption) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{
		config: config,
		logger: logger,
		opts:   opts,
	}
}

// Get returns the breaker for the given name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	if existing, ok := r.breakers.Load(name); ok {
		return existing.(*Breaker)
	}

	opts := append([]BreakerOption{WithBreakerLogger(r.logger)}, r.opts...)
	created := NewBreaker(name, r.config, opts...)

	actual, _ := r.breakers.LoadOrStore(name, created)
	return actual.(*Breaker)
}

// ForPath returns the breaker for the route derived from path.
func (r *Registry) ForPath(path string) *Breaker {
	return r.Get(NameFromPath(path))
}

// Snapshots returns a snapshot of every breaker, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	var snapshots []Snapshot
	r.breakers.Range(func(_, value interface{}) bool {
		snapshots = append(snapshots, value.(*Breaker).Snapshot())
		return true
	})

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})

	return snapshots
}

// Len returns the number of breakers.
func (r *Registry) Len() int {
	count := 0
	r.breakers.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}
