// Package workflow contains the orchestration domain model: the workflow
// aggregate, its steps, value types, and the domain events they emit.
package workflow

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	StatusPending      WorkflowStatus = "PENDING"
	StatusExecuting    WorkflowStatus = "EXECUTING"
	StatusPaused       WorkflowStatus = "PAUSED"
	StatusCompleted    WorkflowStatus = "COMPLETED"
	StatusFailed       WorkflowStatus = "FAILED"
	StatusCompensating WorkflowStatus = "COMPENSATING"
	StatusCompensated  WorkflowStatus = "COMPENSATED"
	StatusCancelled    WorkflowStatus = "CANCELLED"
)

// String returns the string representation of the status.
func (s WorkflowStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is one of the defined lifecycle states.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusExecuting, StatusPaused, StatusCompleted,
		StatusFailed, StatusCompensating, StatusCompensated, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status is absorbing: no further transition
// except the compensating pair is permitted once a workflow reaches it.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompensated, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the workflow is still making progress or can be
// resumed.
func (s WorkflowStatus) IsActive() bool {
	switch s {
	case StatusExecuting, StatusPaused, StatusCompensating:
		return true
	}
	return false
}

// workflowTransitions enumerates the legal status transitions. Anything not
// listed here is rejected with InvalidStateError.
var workflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	StatusPending:      {StatusExecuting, StatusCancelled},
	StatusExecuting:    {StatusCompleted, StatusPaused, StatusFailed, StatusCancelled},
	StatusPaused:       {StatusExecuting, StatusCancelled},
	StatusFailed:       {StatusExecuting, StatusCompensating, StatusCancelled},
	StatusCompensating: {StatusCompensated, StatusCancelled},
	StatusCompleted:    {},
	StatusCompensated:  {},
	StatusCancelled:    {},
}

// CanTransitionTo reports whether the transition s -> target is legal.
func (s WorkflowStatus) CanTransitionTo(target WorkflowStatus) bool {
	for _, next := range workflowTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// StepStatus represents the lifecycle state of a single step.
type StepStatus string

const (
	StepPending      StepStatus = "PENDING"
	StepExecuting    StepStatus = "EXECUTING"
	StepCompleted    StepStatus = "COMPLETED"
	StepFailed       StepStatus = "FAILED"
	StepSkipped      StepStatus = "SKIPPED"
	StepCompensating StepStatus = "COMPENSATING"
	StepCompensated  StepStatus = "COMPENSATED"
)

// String returns the string representation of the step status.
func (s StepStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the step can make no further forward progress.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepSkipped, StepCompensated:
		return true
	}
	return false
}

var stepTransitions = map[StepStatus][]StepStatus{
	StepPending:      {StepExecuting, StepSkipped},
	StepExecuting:    {StepCompleted, StepFailed, StepSkipped},
	StepCompleted:    {StepCompensating},
	StepFailed:       {StepPending, StepExecuting},
	StepCompensating: {StepCompensated},
	StepSkipped:      {},
	StepCompensated:  {},
}

// CanTransitionTo reports whether the transition s -> target is legal.
func (s StepStatus) CanTransitionTo(target StepStatus) bool {
	for _, next := range stepTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
