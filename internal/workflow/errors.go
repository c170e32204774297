package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared across the domain.
var (
	// ErrStepNotFound is returned when an operation names a step the
	// workflow does not own.
	ErrStepNotFound = errors.New("step not found")

	// ErrNoCompensation is returned when a compensation operation is
	// requested on a step without a compensation action.
	ErrNoCompensation = errors.New("step has no compensation action")
)

// ErrorType classifies a workflow error for recovery decisions.
type ErrorType string

const (
	ErrorValidation            ErrorType = "VALIDATION"
	ErrorServiceUnavailable    ErrorType = "SERVICE_UNAVAILABLE"
	ErrorTimeout               ErrorType = "TIMEOUT"
	ErrorBusinessRuleViolation ErrorType = "BUSINESS_RULE_VIOLATION"
	ErrorDataIntegrity         ErrorType = "DATA_INTEGRITY"
	ErrorNetwork               ErrorType = "NETWORK"
	ErrorPermissionDenied      ErrorType = "PERMISSION_DENIED"
	ErrorResourceNotFound      ErrorType = "RESOURCE_NOT_FOUND"
	ErrorInternal              ErrorType = "INTERNAL"
	ErrorCompensationFailed    ErrorType = "COMPENSATION_FAILED"
)

// DefaultRecoverable reports whether errors of this type are retried by
// forward recovery unless the producer says otherwise.
func (t ErrorType) DefaultRecoverable() bool {
	switch t {
	case ErrorServiceUnavailable, ErrorTimeout, ErrorNetwork:
		return true
	}
	return false
}

// WorkflowError is a domain failure recorded against a workflow or a step.
// It is a value, not a Go error: recovery decisions branch on its fields.
type WorkflowError struct {
	ID          string         `json:"id"`
	Type        ErrorType      `json:"type"`
	Code        string         `json:"code,omitempty"`
	Message     string         `json:"message"`
	ServiceName string         `json:"serviceName,omitempty"`
	StepID      string         `json:"stepId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Recoverable bool           `json:"recoverable"`
	Details     map[string]any `json:"details,omitempty"`
}

// NewWorkflowError creates an error of the given type with the type's
// default recoverability.
func NewWorkflowError(t ErrorType, code, message string, occurredAt time.Time) WorkflowError {
	return WorkflowError{
		ID:          uuid.NewString(),
		Type:        t,
		Code:        code,
		Message:     message,
		OccurredAt:  occurredAt,
		Recoverable: t.DefaultRecoverable(),
	}
}

// TimeoutError creates a recoverable timeout error for a step.
func TimeoutError(stepID, serviceName string, occurredAt time.Time) WorkflowError {
	e := NewWorkflowError(ErrorTimeout, "STEP_TIMEOUT",
		fmt.Sprintf("step %s timed out calling %s", stepID, serviceName), occurredAt)
	e.StepID = stepID
	e.ServiceName = serviceName
	return e
}

// CompensationError creates a non-recoverable compensation failure.
func CompensationError(stepID, message string, occurredAt time.Time) WorkflowError {
	e := NewWorkflowError(ErrorCompensationFailed, "COMPENSATION_FAILED", message, occurredAt)
	e.StepID = stepID
	return e
}

// WithStep returns a copy of the error attributed to the given step.
func (e WorkflowError) WithStep(stepID string) WorkflowError {
	e.StepID = stepID
	return e
}

// RequiresCompensation reports whether this error triggers backward
// recovery. Validation failures never compensate: nothing was done.
func (e WorkflowError) RequiresCompensation() bool {
	return !e.Recoverable && e.Type != ErrorValidation
}

// Error implements the error interface so a WorkflowError can cross port
// boundaries as an ordinary Go error.
func (e WorkflowError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s [%s] step %s: %s", e.Type, e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Type, e.Code, e.Message)
}

// InvalidStateError signals a pre-condition violation on the aggregate.
// It is a caller bug and never appears as a workflow-terminal error.
type InvalidStateError struct {
	Entity    string
	ID        string
	Current   string
	Operation string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: cannot %s %s %s in state %s", e.Operation, e.Entity, e.ID, e.Current)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}
