// Package hardening bounds every outbound call with a timeout and isolates
// failing agents behind a per-agent circuit breaker, per §4.2.
package hardening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcpfleet/orchestrator/internal/clock"
)

// Config holds the overridable defaults from §4.2.
type Config struct {
	DefaultTimeout          time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// DefaultConfig returns the spec's defaults: 30s timeout, 3 retries, 1s
// base retry delay, breaker threshold 5, breaker timeout 60s.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:          30 * time.Second,
		MaxRetries:              3,
		RetryDelay:              1 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}

// Hardening wires together the breaker registry, timeout enforcement, and
// error-stat aggregation described in §4.2.
type Hardening struct {
	cfg      Config
	clock    clock.Clock
	breakers *BreakerRegistry

	statsMu sync.Mutex
	stats   map[Category]int64

	onBreakerOpened func(agentID string)
}

// New creates a Hardening instance. onBreakerOpened, if non-nil, is
// invoked (without holding any internal lock) whenever a breaker trips.
func New(cfg Config, c clock.Clock, onBreakerOpened func(agentID string)) *Hardening {
	return &Hardening{
		cfg:             cfg,
		clock:           c,
		breakers:        NewBreakerRegistry(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout, c),
		stats:           make(map[Category]int64),
		onBreakerOpened: onBreakerOpened,
	}
}

// ErrCircuitOpen is returned by SafeToolCall when the agent's breaker is
// open and the outbound call was never attempted.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

// ErrTimedOut is the sentinel wrapped into every deadline-expiry failure,
// so callers can map it to the timeout JSON-RPC code with errors.Is
// instead of sniffing the message.
var ErrTimedOut = fmt.Errorf("Operation timed out")

// Op is the unit of work SafeToolCall bounds and protects.
type Op func(ctx context.Context) (any, error)

// SafeToolCall implements the safeToolCall contract from §4.2: breaker
// gate, hard timeout, success/failure bookkeeping, error-stat update.
// agentID may be empty for calls with no associated agent (e.g. discovery
// housekeeping), in which case the breaker gate is skipped.
func (h *Hardening) SafeToolCall(ctx context.Context, agentID string, timeout time.Duration, op Op) (any, error) {
	if timeout <= 0 {
		timeout = h.cfg.DefaultTimeout
	}

	var breaker *Breaker
	if agentID != "" {
		breaker = h.breakers.Get(agentID)
		admit, _ := breaker.Admit()
		if !admit {
			return nil, ErrCircuitOpen
		}
	}

	result, err := h.runWithDeadline(ctx, timeout, op)

	if err != nil {
		h.recordStat(err)
		if breaker != nil {
			if breaker.RecordFailure() && h.onBreakerOpened != nil {
				h.onBreakerOpened(agentID)
			}
		}
		return nil, err
	}

	if breaker != nil {
		breaker.RecordSuccess()
	}
	return result, nil
}

func (h *Hardening) runWithDeadline(ctx context.Context, timeout time.Duration, op Op) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := op(ctx)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %dms", ErrTimedOut, timeout.Milliseconds())
	}
}

// RetryConfig configures safeAsyncOperation's bounded, exponentially
// backed-off retry loop.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	AgentID    string
}

// SafeAsyncOperation implements the safeAsyncOperation contract from §4.2:
// up to maxRetries+1 attempts through SafeToolCall, exponential backoff
// between attempts. Reserved for internal housekeeping paths; tools/call
// does not use this (it calls SafeToolCall directly with retries
// disabled), per the retry-composition design note.
func (h *Hardening) SafeAsyncOperation(ctx context.Context, cfg RetryConfig, op Op) (any, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = h.cfg.MaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = h.cfg.RetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		result, err := h.SafeToolCall(ctx, cfg.AgentID, cfg.Timeout, op)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt <= maxRetries {
			backoff := retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-h.clock.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (h *Hardening) recordStat(err error) {
	cat := Categorize(err)
	h.statsMu.Lock()
	h.stats[cat]++
	h.statsMu.Unlock()
}

// Stats returns a snapshot of error-category frequencies.
func (h *Hardening) Stats() map[Category]int64 {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	out := make(map[Category]int64, len(h.stats))
	for k, v := range h.stats {
		out[k] = v
	}
	return out
}

// BreakerSnapshot exposes the breaker registry's state for /health and
// /status reporting.
func (h *Hardening) BreakerSnapshot() map[string]BreakerStatus {
	return h.breakers.Snapshot()
}

// ResetBreaker explicitly closes an agent's breaker (e.g. operator
// intervention via a future admin endpoint); not exercised by the spec's
// HTTP surface today but kept as a documented escape hatch.
func (h *Hardening) ResetBreaker(agentID string) {
	h.breakers.Get(agentID).Reset()
}
