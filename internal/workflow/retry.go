package workflow

import (
	"math"
	"time"
)

// RetryPolicy bounds forward recovery for a step. Delays are computed, not
// slept: the scheduler re-admits the workflow at or after the due time.
type RetryPolicy struct {
	MaxRetries   int           `json:"maxRetries"`
	InitialDelay time.Duration `json:"initialDelay"`
	MaxDelay     time.Duration `json:"maxDelay"`
	Multiplier   float64       `json:"multiplier"`
	Exponential  bool          `json:"exponential"`
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, 1s initial
// delay doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Exponential:  true,
	}
}

// AggressiveRetryPolicy returns a policy for urgent work: more attempts,
// shorter delays.
func AggressiveRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   1.5,
		Exponential:  true,
	}
}

// ConservativeRetryPolicy returns a policy for work that should back off
// quickly: few attempts, long delays.
func ConservativeRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 2 * time.Second,
		MaxDelay:     20 * time.Second,
		Multiplier:   3.0,
		Exponential:  true,
	}
}

// PolicyForPriority selects the named policy matching a workflow priority.
func PolicyForPriority(p WorkflowPriority) RetryPolicy {
	switch p {
	case PriorityHigh:
		return AggressiveRetryPolicy()
	case PriorityLow:
		return ConservativeRetryPolicy()
	default:
		return DefaultRetryPolicy()
	}
}

// CanRetry reports whether another attempt is permitted after `attempt`
// failures.
func (p RetryPolicy) CanRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

// DelayFor returns the backoff delay before attempt n (0-indexed),
// saturating at MaxDelay.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if !p.Exponential {
		return p.InitialDelay
	}
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}
