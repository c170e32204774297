package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelays(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{"default first", DefaultRetryPolicy(), 0, 1 * time.Second},
		{"default second", DefaultRetryPolicy(), 1, 2 * time.Second},
		{"default third", DefaultRetryPolicy(), 2, 4 * time.Second},
		{"default saturates", DefaultRetryPolicy(), 8, 10 * time.Second},
		{"aggressive first", AggressiveRetryPolicy(), 0, 500 * time.Millisecond},
		{"aggressive second", AggressiveRetryPolicy(), 1, 750 * time.Millisecond},
		{"aggressive saturates", AggressiveRetryPolicy(), 20, 5 * time.Second},
		{"conservative first", ConservativeRetryPolicy(), 0, 2 * time.Second},
		{"conservative second", ConservativeRetryPolicy(), 1, 6 * time.Second},
		{"conservative saturates", ConservativeRetryPolicy(), 5, 20 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.DelayFor(tt.attempt))
		})
	}
}

func TestRetryPolicyFixedDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2, Exponential: false}
	assert.Equal(t, time.Second, p.DelayFor(0))
	assert.Equal(t, time.Second, p.DelayFor(5))
}

func TestRetryPolicyCanRetry(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.True(t, p.CanRetry(0))
	assert.True(t, p.CanRetry(2))
	assert.False(t, p.CanRetry(3))
}

func TestPolicyForPriority(t *testing.T) {
	assert.Equal(t, AggressiveRetryPolicy(), PolicyForPriority(PriorityHigh))
	assert.Equal(t, DefaultRetryPolicy(), PolicyForPriority(PriorityNormal))
	assert.Equal(t, ConservativeRetryPolicy(), PolicyForPriority(PriorityLow))
}
