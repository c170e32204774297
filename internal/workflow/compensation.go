package workflow

import "time"

// CompensationStrategy names how a completed step is undone.
type CompensationStrategy string

const (
	CompensateReverseOperation CompensationStrategy = "REVERSE_OPERATION"
	CompensateDeleteCreated    CompensationStrategy = "DELETE_CREATED"
	CompensateRestoreState     CompensationStrategy = "RESTORE_STATE"
	CompensateCustom           CompensationStrategy = "CUSTOM"
)

// CompensationAction describes the remote call that undoes a completed step.
type CompensationAction struct {
	Strategy    CompensationStrategy `json:"strategy"`
	ServiceName string               `json:"serviceName"`
	Operation   string               `json:"operation"`
	Parameters  map[string]string    `json:"parameters,omitempty"`
	Idempotent  bool                 `json:"idempotent"`
	MaxRetries  int                  `json:"maxRetries"`
	Timeout     time.Duration        `json:"timeout"`
}

// ReverseOperation builds a compensation that invokes the inverse operation
// on the same service.
func ReverseOperation(serviceName, operation string) CompensationAction {
	return CompensationAction{
		Strategy:    CompensateReverseOperation,
		ServiceName: serviceName,
		Operation:   operation,
		Idempotent:  true,
		MaxRetries:  3,
		Timeout:     30 * time.Second,
	}
}

// DeleteCreated builds a compensation that deletes the resource the step
// created.
func DeleteCreated(serviceName, operation string) CompensationAction {
	return CompensationAction{
		Strategy:    CompensateDeleteCreated,
		ServiceName: serviceName,
		Operation:   operation,
		Idempotent:  true,
		MaxRetries:  3,
		Timeout:     30 * time.Second,
	}
}

// RestoreState builds a compensation that restores a prior snapshot.
func RestoreState(serviceName, operation string, params map[string]string) CompensationAction {
	return CompensationAction{
		Strategy:    CompensateRestoreState,
		ServiceName: serviceName,
		Operation:   operation,
		Parameters:  params,
		Idempotent:  false,
		MaxRetries:  3,
		Timeout:     30 * time.Second,
	}
}

// IsValid reports whether the action is complete enough to invoke.
func (a CompensationAction) IsValid() bool {
	if a.ServiceName == "" || a.Operation == "" {
		return false
	}
	switch a.Strategy {
	case CompensateReverseOperation, CompensateDeleteCreated, CompensateRestoreState, CompensateCustom:
		return true
	}
	return false
}
