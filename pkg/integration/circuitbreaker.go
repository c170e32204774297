// Package integration provides resilience patterns for calls to the
// warehouse execution services: circuit breaking, retries with backoff,
// and timeout management.
package integration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paklog/orchestration/pkg/metrics"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int32

const (
	// StateClosed allows requests to pass through.
	StateClosed CircuitState = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows limited requests to test recovery.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
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

// ToMetricsState converts the CircuitState to a metrics state.
func (s CircuitState) ToMetricsState() metrics.CircuitBreakerState {
	switch s {
	case StateOpen:
		return metrics.CircuitBreakerOpen
	case StateHalfOpen:
		return metrics.CircuitBreakerHalfOpen
	default:
		return metrics.CircuitBreakerClosed
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// Timeout is how long the circuit stays open before probing in half-open.
	// Default: 60s
	Timeout time.Duration

	// HalfOpenRequests is the number of successes required in half-open
	// state to close the circuit again.
	// Default: 3
	HalfOpenRequests int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		HalfOpenRequests: 3,
	}
}

// CircuitBreaker tracks failures per execution service and sheds calls
// once a service looks down.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *slog.Logger

	state             atomic.Int32
	failures          atomic.Int32
	halfOpenSuccesses atomic.Int32
	lastFailure       atomic.Int64
	lastStateChange   atomic.Int64

	mu sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker named after the service it guards.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = 3
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		logger: slog.Default().With("component", "circuit_breaker", "service", name),
	}
	cb.state.Store(int32(StateClosed))
	cb.lastStateChange.Store(time.Now().UnixNano())

	return cb
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}

// Allow reports whether a request may proceed. It returns ErrCircuitOpen
// while the circuit is open and the cool-down has not elapsed.
func (cb *CircuitBreaker) Allow() error {
	switch cb.State() {
	case StateOpen:
		lastFailure := time.Unix(0, cb.lastFailure.Load())
		if time.Since(lastFailure) >= cb.config.Timeout {
			cb.transitionTo(StateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateClosed:
		cb.failures.Store(0)
	case StateHalfOpen:
		if int(cb.halfOpenSuccesses.Add(1)) >= cb.config.HalfOpenRequests {
			cb.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.lastFailure.Store(time.Now().UnixNano())

	switch cb.State() {
	case StateClosed:
		if int(cb.failures.Add(1)) >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		// Any failure while probing reopens the circuit.
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := CircuitState(cb.state.Load())
	if oldState == newState {
		return
	}

	cb.state.Store(int32(newState))
	cb.lastStateChange.Store(time.Now().UnixNano())

	switch newState {
	case StateClosed:
		cb.failures.Store(0)
		cb.halfOpenSuccesses.Store(0)
	case StateHalfOpen:
		cb.halfOpenSuccesses.Store(0)
	}

	cb.logger.Info("circuit breaker state changed",
		"from", oldState.String(),
		"to", newState.String(),
	)

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, newState)
	}

	if reg := metrics.Global(); reg != nil {
		reg.Integration().SetCircuitBreakerState(cb.name, newState.ToMetricsState())
	}
}

// Stats returns the current statistics of the circuit breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	return CircuitBreakerStats{
		Name:              cb.name,
		State:             cb.State(),
		Failures:          int(cb.failures.Load()),
		HalfOpenSuccesses: int(cb.halfOpenSuccesses.Load()),
		LastFailure:       time.Unix(0, cb.lastFailure.Load()),
		LastStateChange:   time.Unix(0, cb.lastStateChange.Load()),
	}
}

// Reset returns the circuit breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.Store(int32(StateClosed))
	cb.failures.Store(0)
	cb.halfOpenSuccesses.Store(0)
	cb.lastFailure.Store(0)
	cb.lastStateChange.Store(time.Now().UnixNano())

	cb.logger.Info("circuit breaker reset")

	if reg := metrics.Global(); reg != nil {
		reg.Integration().SetCircuitBreakerState(cb.name, metrics.CircuitBreakerClosed)
	}
}

// CircuitBreakerStats contains a point-in-time view of a circuit breaker.
type CircuitBreakerStats struct {
	Name              string
	State             CircuitState
	Failures          int
	HalfOpenSuccesses int
	LastFailure       time.Time
	LastStateChange   time.Time
}

// CircuitBreakerRegistry manages one circuit breaker per execution service.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates a registry using defaultConfig for
// breakers created on demand.
func NewCircuitBreakerRegistry(defaultConfig CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		config:   defaultConfig,
	}
}

// Get returns the circuit breaker for a service, creating one if needed.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = NewCircuitBreaker(name, r.config)
	r.breakers[name] = cb
	return cb
}

// Register registers a circuit breaker with a custom configuration.
func (r *CircuitBreakerRegistry) Register(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb := NewCircuitBreaker(name, config)
	r.breakers[name] = cb
	return cb
}

// Stats returns statistics for all registered circuit breakers.
func (r *CircuitBreakerRegistry) Stats() []CircuitBreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]CircuitBreakerStats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}
