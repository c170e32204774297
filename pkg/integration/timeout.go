package integration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paklog/orchestration/pkg/metrics"
)

// ErrTimeout is returned when an operation times out.
var ErrTimeout = errors.New("operation timed out")

// TimeoutConfig configures timeout behavior.
type TimeoutConfig struct {
	// Default is the default timeout for operations.
	// Default: 30s
	Default time.Duration

	// Connect is the timeout for establishing connections.
	// Default: 10s
	Connect time.Duration

	// OnTimeout is called when a timeout occurs.
	OnTimeout func(operation string, timeout time.Duration)
}

// DefaultTimeoutConfig returns the default timeout configuration.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default: 30 * time.Second,
		Connect: 10 * time.Second,
	}
}

// TimeoutManager applies per-operation timeouts to remote calls.
type TimeoutManager struct {
	config      TimeoutConfig
	logger      *slog.Logger
	serviceName string
	endpoint    string
}

// NewTimeoutManager creates a new timeout manager.
func NewTimeoutManager(config TimeoutConfig) *TimeoutManager {
	if config.Default <= 0 {
		config.Default = 30 * time.Second
	}
	if config.Connect <= 0 {
		config.Connect = 10 * time.Second
	}

	return &TimeoutManager{
		config: config,
		logger: slog.Default().With("component", "timeout_manager"),
	}
}

// WithService returns a timeout manager configured for a specific service.
func (tm *TimeoutManager) WithService(serviceName, endpoint string) *TimeoutManager {
	return &TimeoutManager{
		config:      tm.config,
		logger:      tm.logger.With("service", serviceName, "endpoint", endpoint),
		serviceName: serviceName,
		endpoint:    endpoint,
	}
}

// WithTimeout creates a context with the specified timeout. A tighter
// deadline on the parent context is preserved.
func (tm *TimeoutManager) WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = tm.config.Default
	}

	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < timeout {
			return context.WithCancel(ctx)
		}
	}

	return context.WithTimeout(ctx, timeout)
}

// Execute runs fn with the specified timeout.
func (tm *TimeoutManager) Execute(ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) error) error {
	timeoutCtx, cancel := tm.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()

	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		return err

	case <-timeoutCtx.Done():
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			tm.logger.Warn("operation timed out",
				"operation", operation,
				"timeout", timeout,
				"elapsed", time.Since(start),
			)

			if tm.config.OnTimeout != nil {
				tm.config.OnTimeout(operation, timeout)
			}
			if tm.serviceName != "" {
				if reg := metrics.Global(); reg != nil {
					reg.Integration().RecordError(tm.serviceName, tm.endpoint, "timeout")
				}
			}

			return ErrTimeout
		}
		return timeoutCtx.Err()
	}
}

// Config returns the timeout configuration.
func (tm *TimeoutManager) Config() TimeoutConfig {
	return tm.config
}

// WithTimeout runs fn with a one-off timeout.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	return NewTimeoutManager(TimeoutConfig{Default: timeout}).Execute(ctx, timeout, "operation", fn)
}
