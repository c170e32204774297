package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Event type identifiers as published on the bus.
const (
	EventWorkflowStarted               = "workflow.started"
	EventWorkflowStepExecuted          = "workflow.step.executed"
	EventWorkflowStepFailed            = "workflow.step.failed"
	EventWorkflowCompleted             = "workflow.completed"
	EventWorkflowFailed                = "workflow.failed"
	EventWorkflowPaused                = "workflow.paused"
	EventWorkflowResumed               = "workflow.resumed"
	EventWorkflowCancelled             = "workflow.cancelled"
	EventWorkflowRetry                 = "workflow.retry"
	EventWorkflowCompensationStarted   = "workflow.compensation.started"
	EventWorkflowCompensationCompleted = "workflow.compensation.completed"
	EventWavelessProcessingEnabled     = "workflow.waveless.enabled"
	EventSystemLoadRebalanced          = "system.load.rebalanced"
)

// DomainEvent is implemented by every event a workflow emits. Events are
// appended to the workflow's outbox under its lock and published, in order,
// after the persisted write commits.
type DomainEvent interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
	AggregateVersion() int64
}

// eventBase carries the envelope every domain event shares.
type eventBase struct {
	ID          string    `json:"eventId"`
	Type        string    `json:"eventType"`
	Occurred    time.Time `json:"occurredAt"`
	AggregateId string    `json:"aggregateId"`
	Version     int64     `json:"version"`
}

func newEventBase(eventType, aggregateID string, version int64, occurredAt time.Time) eventBase {
	return eventBase{
		ID:          uuid.NewString(),
		Type:        eventType,
		Occurred:    occurredAt,
		AggregateId: aggregateID,
		Version:     version,
	}
}

func (e eventBase) EventID() string         { return e.ID }
func (e eventBase) EventType() string       { return e.Type }
func (e eventBase) OccurredAt() time.Time   { return e.Occurred }
func (e eventBase) AggregateID() string     { return e.AggregateId }
func (e eventBase) AggregateVersion() int64 { return e.Version }

// WorkflowStarted is emitted when a workflow leaves PENDING.
type WorkflowStarted struct {
	eventBase
	DefinitionID  string       `json:"definitionId"`
	WorkflowType  WorkflowType `json:"workflowType"`
	CorrelationID string       `json:"correlationId,omitempty"`
	StartedAt     time.Time    `json:"startedAt"`
}

// WorkflowStepExecuted is emitted when a step completes successfully.
type WorkflowStepExecuted struct {
	eventBase
	StepID   string     `json:"stepId"`
	StepName string     `json:"stepName"`
	Result   StepResult `json:"result"`
}

// WorkflowStepFailed is emitted on every step failure, retried or not.
type WorkflowStepFailed struct {
	eventBase
	StepID     string        `json:"stepId"`
	StepName   string        `json:"stepName"`
	Failure    WorkflowError `json:"error"`
	WillRetry  bool          `json:"willRetry"`
	RetryCount int           `json:"retryCount"`
}

// WorkflowCompleted is the terminal event for a successful workflow.
type WorkflowCompleted struct {
	eventBase
	DurationMs int64          `json:"durationMs"`
	TotalSteps int            `json:"totalSteps"`
	Output     map[string]any `json:"output,omitempty"`
}

// WorkflowFailed is emitted when the workflow transitions to FAILED.
type WorkflowFailed struct {
	eventBase
	Failure              WorkflowError `json:"error"`
	FailedStepID         string        `json:"failedStepId,omitempty"`
	CompensationRequired bool          `json:"compensationRequired"`
}

// WorkflowPaused is emitted when an executing workflow is paused.
type WorkflowPaused struct {
	eventBase
	CurrentStepID string `json:"currentStepId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// WorkflowResumed is emitted when a paused workflow resumes.
type WorkflowResumed struct {
	eventBase
	FromStepID string `json:"fromStepId,omitempty"`
}

// WorkflowCancelled is emitted when a workflow is cancelled.
type WorkflowCancelled struct {
	eventBase
	Reason string `json:"reason"`
}

// WorkflowRetry is emitted when a failed workflow re-enters EXECUTING.
type WorkflowRetry struct {
	eventBase
	RetryCount int `json:"retryCount"`
}

// WorkflowCompensationStarted is emitted when backward recovery begins. The
// step list is a reversed copy of the executed log; the log itself is never
// mutated.
type WorkflowCompensationStarted struct {
	eventBase
	StepsToCompensate []string `json:"stepsToCompensate"`
	Reason            string   `json:"reason,omitempty"`
}

// WorkflowCompensationCompleted is the terminal event for a compensated
// workflow, successful or partial.
type WorkflowCompensationCompleted struct {
	eventBase
	CompensatedSteps []string `json:"compensatedSteps"`
	Successful       bool     `json:"successful"`
	ErrorMessage     string   `json:"error,omitempty"`
}

// WavelessProcessingEnabled is emitted when a workflow opts into waveless
// scheduling.
type WavelessProcessingEnabled struct {
	eventBase
	BatchSize int           `json:"batchSize"`
	Interval  time.Duration `json:"interval"`
}

// SystemLoadRebalanced is emitted by the load controller when admission
// targets shift.
type SystemLoadRebalanced struct {
	eventBase
	ServiceID    string             `json:"serviceId"`
	PreviousLoad float64            `json:"previousLoad"`
	CurrentLoad  float64            `json:"currentLoad"`
	ServiceLoads map[string]float64 `json:"serviceLoads,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// NewSystemLoadRebalanced builds a rebalance event; the aggregate id is the
// service whose admission target changed.
func NewSystemLoadRebalanced(serviceID string, previous, current float64, loads map[string]float64, reason string, now time.Time) SystemLoadRebalanced {
	return SystemLoadRebalanced{
		eventBase:    newEventBase(EventSystemLoadRebalanced, serviceID, 0, now),
		ServiceID:    serviceID,
		PreviousLoad: previous,
		CurrentLoad:  current,
		ServiceLoads: loads,
		Reason:       reason,
	}
}
