// Package breaker implements the per-profile circuit breaker described in
// §4.6: three states (Closed/Open/HalfOpen) gate whether a request may be
// attempted against a profile that has been failing.
package breaker

import (
	"sync"
	"time"
)

// State is a circuit breaker's current state.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Breaker is one profile's circuit breaker. All methods are safe for
// concurrent use; the spec's concurrency model (§5) holds this lock only
// briefly on entry and exit, never across upstream I/O.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailure     time.Time
	threshold       int
	recoveryTimeout time.Duration
}

// New returns a Closed breaker with the given threshold and recovery
// timeout (§4.6 defaults: threshold=3, recoveryTimeout=30s).
func New(threshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{state: Closed, threshold: threshold, recoveryTimeout: recoveryTimeout}
}

// CanAttempt reports whether a request may proceed, per the §4.6 transition
// table. An Open breaker whose recovery timeout has elapsed transitions to
// HalfOpen and returns true.
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.lastFailure) >= b.recoveryTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	}
	return false
}

// RecordSuccess applies the §4.6 success transition for the current state.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.state = Closed
		b.failureCount = 0
	case Closed:
		b.failureCount = 0
	}
}

// RecordFailure applies the §4.6 failure transition for the current state.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount++
		b.lastFailure = time.Now()
		if b.failureCount >= b.threshold {
			b.state = Open
		}
	case Open:
		b.lastFailure = time.Now()
	case HalfOpen:
		b.failureCount++
		b.state = Open
		b.lastFailure = time.Now()
	}
}

// State returns the breaker's current state, for diagnostics.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry is the process-wide map of profile name to Breaker, guarded by
// one lock per §5 ("Circuit breakers: one lock per process over the whole
// map; held only briefly on entry... and on exit").
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	threshold       int
	recoveryTimeout time.Duration
}

// NewRegistry returns an empty registry that creates breakers on first use
// with the given defaults.
func NewRegistry(threshold int, recoveryTimeout time.Duration) *Registry {
	return &Registry{
		breakers:        make(map[string]*Breaker),
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
	}
}

// Get returns the named profile's breaker, creating it (Closed) on first
// access.
func (r *Registry) Get(profile string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[profile]
	if !ok {
		b = New(r.threshold, r.recoveryTimeout)
		r.breakers[profile] = b
	}
	return b
}
