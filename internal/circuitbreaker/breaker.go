// Package circuitbreaker implements a per-route failure circuit
// breaker with a CLOSED/OPEN/HALF_OPEN state machine.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/vyrodovalexey/policygw/internal/observability"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed admits all requests.
	StateClosed State = iota

	// StateOpen rejects all requests until the open timeout elapses.
	StateOpen

	// StateHalfOpen admits trial requests to probe recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a single circuit breaker instance.
//
// Transitions: CLOSED opens after FailureThreshold consecutive
// failures; OPEN moves to HALF_OPEN lazily once OpenTimeout has elapsed
// at the next Allow call; HALF_OPEN closes after SuccessThreshold
// consecutive successes and reopens on any failure.
//
// HALF_OPEN admits all trial requests rather than a single in-flight
// probe; a lone failure among concurrent trials reopens the breaker.
type Breaker struct {
	name   string
	config Config
	logger observability.Logger
	now    func() time.Time

	onStateChange func(name string, from, to State)

	mu                sync.Mutex
	state             State
	failureCount      int
	successCount      int
	lastStateChangeAt time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerLogger sets the logger.
func WithBreakerLogger(logger observability.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithBreakerClock sets the time source.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithOnStateChange sets a callback invoked on every state transition.
func WithOnStateChange(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// NewBreaker creates a breaker in the CLOSED state.
func NewBreaker(name string, config Config, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:   name,
		config: config,
		logger: observability.NopLogger(),
		now:    time.Now,
		state:  StateClosed,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.lastStateChangeAt = b.now()

	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a request may proceed. An OPEN breaker whose
// timeout has elapsed transitions to HALF_OPEN and admits the request.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		RecordRequest(b.name, true)
		return true

	case StateOpen:
		if b.now().Sub(b.lastStateChangeAt) >= b.config.OpenTimeout {
			b.transition(StateHalfOpen)
			RecordRequest(b.name, true)
			return true
		}
		RecordRequest(b.name, false)
		return false

	case StateHalfOpen:
		RecordRequest(b.name, true)
		return true

	default:
		RecordRequest(b.name, false)
		return false
	}
}

// RecordSuccess records a successful backend call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	RecordSuccess(b.name)

	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.transition(StateClosed)
		}

	case StateOpen:
		// A late success from a request admitted before opening.
		// Ignored; recovery is probed via HALF_OPEN.
	}
}

// RecordFailure records a failed backend call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	RecordFailure(b.name)

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.transition(StateOpen)
		}

	case StateHalfOpen:
		b.transition(StateOpen)

	case StateOpen:
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker state for inspection endpoints.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:              b.name,
		State:             b.state.String(),
		FailureCount:      b.failureCount,
		SuccessCount:      b.successCount,
		LastStateChangeAt: b.lastStateChangeAt,
	}
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name              string    `json:"name"`
	State             string    `json:"state"`
	FailureCount      int       `json:"failureCount"`
	SuccessCount      int       `json:"successCount"`
	LastStateChangeAt time.Time `json:"lastStateChangeAt"`
}

// transition moves the breaker to a new state and resets counters.
// Caller must hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.failureCount = 0
	b.successCount = 0
	b.lastStateChangeAt = b.now()

	b.logger.Info("circuit breaker state change",
		observability.String("breaker", b.name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	RecordStateChange(b.name, from, to)

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
