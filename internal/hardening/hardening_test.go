package hardening

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfleet/orchestrator/internal/clock"
)

func TestSafeToolCall_SuccessClosesBreaker(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	h := New(Config{DefaultTimeout: time.Second, CircuitBreakerThreshold: 3, CircuitBreakerTimeout: time.Minute}, fc, nil)

	result, err := h.SafeToolCall(context.Background(), "agent-1", time.Second, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestSafeToolCall_OpensBreakerAfterThreshold(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	var opened []string
	h := New(Config{DefaultTimeout: time.Second, CircuitBreakerThreshold: 2, CircuitBreakerTimeout: time.Minute}, fc, func(agentID string) {
		opened = append(opened, agentID)
	})

	failing := func(ctx context.Context) (any, error) { return nil, errors.New("boom") }

	_, err := h.SafeToolCall(context.Background(), "agent-1", time.Second, failing)
	require.Error(t, err)
	_, err = h.SafeToolCall(context.Background(), "agent-1", time.Second, failing)
	require.Error(t, err)

	assert.Equal(t, []string{"agent-1"}, opened)

	_, err = h.SafeToolCall(context.Background(), "agent-1", time.Second, func(ctx context.Context) (any, error) {
		t.Fatal("op must not run while breaker is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestSafeToolCall_HalfOpenAfterTimeoutThenCloses(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	h := New(Config{DefaultTimeout: time.Second, CircuitBreakerThreshold: 1, CircuitBreakerTimeout: time.Minute}, fc, nil)

	_, err := h.SafeToolCall(context.Background(), "agent-1", time.Second, func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	_, err = h.SafeToolCall(context.Background(), "agent-1", time.Second, func(ctx context.Context) (any, error) {
		return "x", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)

	fc.Advance(time.Minute + time.Second)

	result, err := h.SafeToolCall(context.Background(), "agent-1", time.Second, func(ctx context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
}

func TestSafeToolCall_TimesOut(t *testing.T) {
	fc := clock.New()
	h := New(Config{DefaultTimeout: 50 * time.Millisecond, CircuitBreakerThreshold: 5, CircuitBreakerTimeout: time.Minute}, fc, nil)

	_, err := h.SafeToolCall(context.Background(), "agent-1", 20*time.Millisecond, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, CategoryTimeout, Categorize(errors.New("Operation timed out after 3000ms")))
	assert.Equal(t, CategoryConnection, Categorize(errors.New("dial tcp: connection refused")))
	assert.Equal(t, CategoryNotFound, Categorize(errors.New("agent not found")))
	assert.Equal(t, CategoryUnknown, Categorize(errors.New("something weird")))
}

func TestNewCorrelationID_Format(t *testing.T) {
	id := NewCorrelationID(time.Unix(1700000000, 0))
	assert.Regexp(t, `^err_\d+_[A-Za-z0-9]{9}$`, id)
}

func TestSafeAsyncOperation_RetriesThenFails(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	h := New(Config{DefaultTimeout: time.Second, CircuitBreakerThreshold: 100, CircuitBreakerTimeout: time.Minute}, fc, nil)

	attempts := 0
	op := func(ctx context.Context) (any, error) {
		attempts++
		return nil, errors.New("still failing")
	}

	resultCh := make(chan error, 1)
	go func() {
		_, err := h.SafeAsyncOperation(context.Background(), RetryConfig{MaxRetries: 2, RetryDelay: 10 * time.Millisecond, Timeout: time.Second, AgentID: "agent-1"}, op)
		resultCh <- err
	}()

	// Drive the fake clock forward enough to release both backoff waits.
	for i := 0; i < 50 && attempts < 3; i++ {
		fc.Advance(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	err := <-resultCh
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}
