package integration

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/paklog/orchestration/pkg/metrics"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the initial delay between retries.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay grows.
	// Default: 2.0
	Multiplier float64

	// Jitter is the fraction of randomness applied to delays to avoid
	// synchronized retry storms (0.25 = plus or minus 25%).
	// Default: 0.25
	Jitter float64

	// RetryIf overrides the default retryable check.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.25,
	}
}

// Retryer implements retry with exponential backoff.
type Retryer struct {
	config      RetryConfig
	logger      *slog.Logger
	serviceName string
	endpoint    string
}

// NewRetryer creates a new retryer with the given configuration.
func NewRetryer(config RetryConfig) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = 0.25
	}

	return &Retryer{
		config: config,
		logger: slog.Default().With("component", "retryer"),
	}
}

// WithService returns a retryer configured for a specific service and endpoint.
func (r *Retryer) WithService(serviceName, endpoint string) *Retryer {
	return &Retryer{
		config:      r.config,
		logger:      r.logger.With("service", serviceName, "endpoint", endpoint),
		serviceName: serviceName,
		endpoint:    endpoint,
	}
}

// Do executes fn with retry logic.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := DoWithResult(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult executes a function returning a result with retry logic.
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := r.config.BaseDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= r.config.MaxAttempts {
			break
		}
		if !r.isRetryable(err) {
			return zero, err
		}

		actualDelay := r.addJitter(delay)

		r.logger.Warn("retrying request",
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"error", err.Error(),
			"delay", actualDelay,
		)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, actualDelay)
		}
		if r.serviceName != "" {
			if reg := metrics.Global(); reg != nil {
				reg.Integration().RecordRetry(r.serviceName, r.endpoint)
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(actualDelay):
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	return zero, lastErr
}

func (r *Retryer) isRetryable(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return IsRetryable(err)
}

func (r *Retryer) addJitter(delay time.Duration) time.Duration {
	if r.config.Jitter <= 0 {
		return delay
	}

	jitterRange := float64(delay) * r.config.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	result := time.Duration(float64(delay) + jitter)
	if result < 0 {
		return delay
	}
	return result
}

// IsRetryable reports whether an error is transient enough to retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// OpError implements net.Error, check it first.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return IsRetryableStatusCode(httpErr.StatusCode)
	}

	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"too many requests",
		"i/o timeout",
		"network is unreachable",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// IsRetryableStatusCode reports whether an HTTP status code should be retried.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// HTTPError represents an HTTP error with status code and response body.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message}
}

// NewHTTPErrorWithBody creates a new HTTP error carrying the response body.
func NewHTTPErrorWithBody(statusCode int, message string, body []byte) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, Body: body}
}

// Retry executes fn with the default retry configuration.
func Retry(ctx context.Context, fn func(context.Context) error) error {
	return NewRetryer(DefaultRetryConfig()).Do(ctx, fn)
}
