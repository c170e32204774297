package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeRecoverability(t *testing.T) {
	recoverable := []ErrorType{ErrorServiceUnavailable, ErrorTimeout, ErrorNetwork}
	for _, et := range recoverable {
		assert.True(t, et.DefaultRecoverable(), "%s", et)
	}

	nonRecoverable := []ErrorType{
		ErrorValidation, ErrorBusinessRuleViolation, ErrorDataIntegrity,
		ErrorPermissionDenied, ErrorResourceNotFound, ErrorInternal, ErrorCompensationFailed,
	}
	for _, et := range nonRecoverable {
		assert.False(t, et.DefaultRecoverable(), "%s", et)
	}
}

func TestRequiresCompensation(t *testing.T) {
	timeout := NewWorkflowError(ErrorTimeout, "T", "slow", testTime)
	assert.False(t, timeout.RequiresCompensation(), "recoverable errors retry, not compensate")

	validation := NewWorkflowError(ErrorValidation, "V", "bad input", testTime)
	assert.False(t, validation.RequiresCompensation(), "validation never compensates")

	business := NewWorkflowError(ErrorBusinessRuleViolation, "B", "rule", testTime)
	assert.True(t, business.RequiresCompensation())
}

func TestWorkflowStatusProperties(t *testing.T) {
	for _, s := range []WorkflowStatus{StatusCompleted, StatusCompensated, StatusCancelled} {
		assert.True(t, s.IsTerminal(), "%s", s)
		assert.Empty(t, workflowTransitions[s])
	}
	assert.False(t, StatusFailed.IsTerminal(), "FAILED can still retry or compensate")
	assert.True(t, StatusFailed.CanTransitionTo(StatusExecuting))
	assert.True(t, StatusFailed.CanTransitionTo(StatusCompensating))
	assert.False(t, StatusCompensating.CanTransitionTo(StatusExecuting))
	assert.True(t, StatusCompensating.CanTransitionTo(StatusCompensated))
}

func TestStepStatusProperties(t *testing.T) {
	assert.False(t, StepPending.CanTransitionTo(StepCompleted))
	assert.True(t, StepFailed.CanTransitionTo(StepPending))
	assert.False(t, StepCompleted.CanTransitionTo(StepCompensated), "must pass through COMPENSATING")
	assert.True(t, StepCompleted.CanTransitionTo(StepCompensating))
	assert.True(t, StepCompensating.CanTransitionTo(StepCompensated))
}
