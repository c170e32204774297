package workflow

import "time"

// Step is one unit of remote work owned by exactly one workflow. It carries
// its own retry and compensation lifecycle. Steps never hold a reference
// back to their workflow; callers pass the workflow id where needed.
type Step struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           string              `json:"type,omitempty"`
	ServiceName    string              `json:"serviceName"`
	Operation      string              `json:"operation"`
	ExecutionOrder int                 `json:"executionOrder"`
	DependsOn      []string            `json:"dependsOn,omitempty"`
	Status         StepStatus          `json:"status"`
	Input          map[string]any      `json:"input,omitempty"`
	Output         map[string]any      `json:"output,omitempty"`
	Result         *StepResult         `json:"result,omitempty"`
	LastError      *WorkflowError      `json:"lastError,omitempty"`
	RetryPolicy    RetryPolicy         `json:"retryPolicy"`
	RetryCount     int                 `json:"retryCount"`
	Compensation   *CompensationAction `json:"compensation,omitempty"`
	Timeout        time.Duration       `json:"timeout"`
	StartedAt      *time.Time          `json:"startedAt,omitempty"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	CompensatedAt  *time.Time          `json:"compensatedAt,omitempty"`
}

// NewStep creates a pending step with the default retry policy and a 30s
// timeout.
func NewStep(id, name, serviceName, operation string, order int) *Step {
	return &Step{
		ID:             id,
		Name:           name,
		ServiceName:    serviceName,
		Operation:      operation,
		ExecutionOrder: order,
		Status:         StepPending,
		RetryPolicy:    DefaultRetryPolicy(),
		Timeout:        30 * time.Second,
	}
}

func (s *Step) invalidState(op string) error {
	return &InvalidStateError{Entity: "step", ID: s.ID, Current: s.Status.String(), Operation: op}
}

// Start moves the step to EXECUTING. Starting from FAILED consumes one
// retry attempt.
func (s *Step) Start(now time.Time) error {
	switch s.Status {
	case StepPending:
	case StepFailed:
		s.RetryCount++
	default:
		return s.invalidState("start")
	}
	s.Status = StepExecuting
	s.StartedAt = &now
	s.CompletedAt = nil
	return nil
}

// MarkCompleted records a successful result.
func (s *Step) MarkCompleted(result StepResult, now time.Time) error {
	if s.Status != StepExecuting {
		return s.invalidState("complete")
	}
	s.Status = StepCompleted
	s.Result = &result
	s.Output = result.Output
	s.LastError = nil
	s.CompletedAt = &now
	return nil
}

// MarkFailed records a failure. The error is retained for the retry and
// compensation decisions.
func (s *Step) MarkFailed(err WorkflowError, now time.Time) error {
	if s.Status != StepExecuting {
		return s.invalidState("fail")
	}
	s.Status = StepFailed
	s.LastError = &err
	s.CompletedAt = &now
	return nil
}

// Skip marks the step skipped with a reason recorded in its output.
func (s *Step) Skip(reason string, now time.Time) error {
	if s.Status != StepPending && s.Status != StepExecuting {
		return s.invalidState("skip")
	}
	s.Status = StepSkipped
	s.Output = map[string]any{"skipped": true, "reason": reason}
	s.CompletedAt = &now
	return nil
}

// ResetForRetry returns a failed step to PENDING so the scheduler can
// re-admit it. Leaving FAILED consumes one retry attempt, same as a direct
// restart.
func (s *Step) ResetForRetry() error {
	if !s.CanRetry() {
		return s.invalidState("retry")
	}
	s.RetryCount++
	s.Status = StepPending
	s.LastError = nil
	s.StartedAt = nil
	s.CompletedAt = nil
	return nil
}

// Compensate moves a completed step into COMPENSATING.
func (s *Step) Compensate() error {
	if s.Status != StepCompleted {
		return s.invalidState("compensate")
	}
	if s.Compensation == nil {
		return ErrNoCompensation
	}
	s.Status = StepCompensating
	return nil
}

// MarkCompensated finishes compensation. Calling it on an already
// compensated step is a no-op.
func (s *Step) MarkCompensated(now time.Time) error {
	if s.Status == StepCompensated {
		return nil
	}
	if s.Status != StepCompensating {
		return s.invalidState("mark compensated")
	}
	s.Status = StepCompensated
	s.CompensatedAt = &now
	return nil
}

// CanRetry reports whether forward recovery may re-admit this step.
func (s *Step) CanRetry() bool {
	return s.Status == StepFailed && s.RetriesRemaining() > 0 && s.RetryPolicy.CanRetry(s.RetryCount)
}

// RetriesRemaining returns the number of retry attempts left.
func (s *Step) RetriesRemaining() int {
	remaining := s.RetryPolicy.MaxRetries - s.RetryCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryDelay returns the backoff before the next attempt.
func (s *Step) RetryDelay() time.Duration {
	return s.RetryPolicy.DelayFor(s.RetryCount)
}

// RequiresCompensation reports whether backward recovery must undo this
// step: it completed and declares a compensation action.
func (s *Step) RequiresCompensation() bool {
	return s.Status == StepCompleted && s.Compensation != nil
}

// IsCompensated reports whether the step's compensation already ran.
func (s *Step) IsCompensated() bool {
	return s.Status == StepCompensated
}

// HasTimedOut reports whether an executing step exceeded its timeout.
func (s *Step) HasTimedOut(now time.Time) bool {
	if s.Status != StepExecuting || s.StartedAt == nil || s.Timeout <= 0 {
		return false
	}
	return now.Sub(*s.StartedAt) > s.Timeout
}

// Duration returns the wall time between start and completion, or zero if
// either is missing.
func (s *Step) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}
