package hardening

import (
	"sync"
	"time"

	"github.com/mcpfleet/orchestrator/internal/clock"
)

// State is a circuit breaker's lifecycle state (§3).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Breaker is a single agent's circuit breaker. Its (state, failureCount,
// lastFailure, lastSuccess) live behind one lock so the open→half-open
// transition is decided in the same critical section that admits the
// next call, per the breaker-atomicity design note.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  time.Time
	lastSuccess  time.Time

	threshold int
	timeout   time.Duration
	clock     clock.Clock
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(threshold int, timeout time.Duration, c clock.Clock) *Breaker {
	return &Breaker{state: StateClosed, threshold: threshold, timeout: timeout, clock: c}
}

// Admit reports whether a call should be allowed through. If the breaker
// is open but its timeout has elapsed, it transitions to half-open. Every
// caller is admitted while the breaker is half-open, not only the one
// that observed the expiry.
func (b *Breaker) Admit() (admit bool, state State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.clock.Now().Sub(b.lastFailure) < b.timeout {
			return false, StateOpen
		}
		b.state = StateHalfOpen
		b.failureCount = 0
	}
	return true, b.state
}

// RecordSuccess marks a successful call. If the breaker was half-open it
// closes; failureCount resets.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.lastSuccess = b.clock.Now()
}

// RecordFailure marks a failed call, opening the breaker once failureCount
// reaches the threshold. Returns true if this call caused the breaker to
// open (so the caller can emit circuitBreakerOpened).
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailure = b.clock.Now()
	if b.failureCount >= b.threshold && b.state != StateOpen {
		b.state = StateOpen
		return true
	}
	return false
}

// Snapshot returns the breaker's current state for status reporting.
func (b *Breaker) Snapshot() (state State, failureCount int, lastFailure, lastSuccess time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.failureCount, b.lastFailure, b.lastSuccess
}

// Reset explicitly forces the breaker back to closed, per the invariant
// that breakers are never destroyed but may be explicitly reset.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
}

// BreakerRegistry lazily creates one Breaker per agent on first recorded
// outcome and never destroys them.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker

	threshold int
	timeout   time.Duration
	clock     clock.Clock
}

// NewBreakerRegistry creates a registry that builds breakers with the
// given threshold/timeout.
func NewBreakerRegistry(threshold int, timeout time.Duration, c clock.Clock) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		timeout:   timeout,
		clock:     c,
	}
}

// Get returns the breaker for agentID, creating it on first use.
func (r *BreakerRegistry) Get(agentID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[agentID]
	if !ok {
		b = NewBreaker(r.threshold, r.timeout, r.clock)
		r.breakers[agentID] = b
	}
	return b
}

// Snapshot returns a copy of every known breaker's state, keyed by agent
// id, for /health and /status reporting.
func (r *BreakerRegistry) Snapshot() map[string]BreakerStatus {
	r.mu.Lock()
	ids := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for id, b := range r.breakers {
		ids = append(ids, id)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]BreakerStatus, len(ids))
	for i, id := range ids {
		state, failures, lastFailure, lastSuccess := breakers[i].Snapshot()
		out[id] = BreakerStatus{
			State:        state,
			FailureCount: failures,
			LastFailure:  lastFailure,
			LastSuccess:  lastSuccess,
		}
	}
	return out
}

// BreakerStatus is the reporting-friendly snapshot of a Breaker.
type BreakerStatus struct {
	State        State     `json:"state"`
	FailureCount int       `json:"failureCount"`
	LastFailure  time.Time `json:"lastFailure,omitempty"`
	LastSuccess  time.Time `json:"lastSuccess,omitempty"`
}
