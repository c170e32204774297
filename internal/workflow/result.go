package workflow

import "time"

// StepResult is the outcome of one remote step invocation.
type StepResult struct {
	Success     bool           `json:"success"`
	Output      map[string]any `json:"output,omitempty"`
	Error       *WorkflowError `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completedAt"`
}

// SuccessResult builds a successful step result.
func SuccessResult(output map[string]any, completedAt time.Time) StepResult {
	return StepResult{
		Success:     true,
		Output:      output,
		CompletedAt: completedAt,
	}
}

// FailureResult builds a failed step result carrying the error.
func FailureResult(err WorkflowError, completedAt time.Time) StepResult {
	return StepResult{
		Success:     false,
		Error:       &err,
		CompletedAt: completedAt,
	}
}
