package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(t *testing.T) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker("inventory-service", CircuitBreakerConfig{
		FailureThreshold: 3,
		Timeout:          50 * time.Millisecond,
		HalfOpenRequests: 2,
	})
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := testBreaker(t)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(t)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenAfterCooldown(t *testing.T) {
	cb := testBreaker(t)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)

	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestHalfOpenClosesAfterSuccesses(t *testing.T) {
	cb := testBreaker(t)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(t)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecuteRecordsOutcome(t *testing.T) {
	cb := testBreaker(t)
	boom := errors.New("robot offline")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("robot-service", CircuitBreakerConfig{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.RecordFailure()
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestReset(t *testing.T) {
	cb := testBreaker(t)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
	assert.Zero(t, cb.Stats().Failures)
}

func TestRegistryReturnsSameBreakerPerService(t *testing.T) {
	reg := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig())

	a := reg.Get("inventory-service")
	b := reg.Get("inventory-service")
	c := reg.Get("picking-service")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, reg.Stats(), 2)
}

func TestRegistryRegisterCustomConfig(t *testing.T) {
	reg := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig())
	custom := reg.Register("packing-service", CircuitBreakerConfig{FailureThreshold: 1})

	custom.RecordFailure()
	assert.Equal(t, StateOpen, reg.Get("packing-service").State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
