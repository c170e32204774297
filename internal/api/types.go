package api

import (
	"time"

	"github.com/paklog/orchestration/internal/waveless"
	"github.com/paklog/orchestration/internal/workflow"
)

// StartWorkflowRequest creates and starts a workflow from an inline
// definition. WorkflowID is generated when absent.
type StartWorkflowRequest struct {
	WorkflowID    string                       `json:"workflowId,omitempty" validate:"omitempty,max=128"`
	Definition    *workflow.WorkflowDefinition `json:"definition" validate:"required"`
	Priority      string                       `json:"priority,omitempty" validate:"omitempty,oneof=HIGH NORMAL LOW"`
	TriggeredBy   string                       `json:"triggeredBy,omitempty" validate:"omitempty,max=128"`
	CorrelationID string                       `json:"correlationId,omitempty" validate:"omitempty,max=128"`
	Input         map[string]any               `json:"input,omitempty"`
}

// FailStepRequest reports an externally observed step failure.
type FailStepRequest struct {
	ErrorType string         `json:"errorType" validate:"required"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message" validate:"required"`
	Details   map[string]any `json:"details,omitempty"`
}

// ReasonRequest carries the operator reason for pause/cancel/compensate.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=512"`
}

// EnableWavelessRequest opts a workflow into waveless scheduling.
type EnableWavelessRequest struct {
	BatchSize int `json:"batchSize" validate:"required,min=1,max=1000"`
	IntervalS int `json:"intervalSeconds" validate:"required,min=1,max=3600"`
}

// ErrorResponse is the error envelope for every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// StepResponse is the API view of one step.
type StepResponse struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	ServiceName    string                  `json:"serviceName"`
	Operation      string                  `json:"operation"`
	ExecutionOrder int                     `json:"executionOrder"`
	Status         workflow.StepStatus     `json:"status"`
	RetryCount     int                     `json:"retryCount"`
	Output         map[string]any          `json:"output,omitempty"`
	LastError      *workflow.WorkflowError `json:"lastError,omitempty"`
	StartedAt      *time.Time              `json:"startedAt,omitempty"`
	CompletedAt    *time.Time              `json:"completedAt,omitempty"`
	CompensatedAt  *time.Time              `json:"compensatedAt,omitempty"`
}

// WorkflowResponse is the API view of a workflow.
type WorkflowResponse struct {
	ID               string                    `json:"id"`
	DefinitionID     string                    `json:"definitionId"`
	Name             string                    `json:"name"`
	Type             workflow.WorkflowType     `json:"type"`
	Status           workflow.WorkflowStatus   `json:"status"`
	Priority         workflow.WorkflowPriority `json:"priority"`
	CurrentStepID    string                    `json:"currentStepId,omitempty"`
	TriggeredBy      string                    `json:"triggeredBy,omitempty"`
	CorrelationID    string                    `json:"correlationId,omitempty"`
	Output           map[string]any            `json:"output,omitempty"`
	Steps            []StepResponse            `json:"steps"`
	ExecutedSteps    []string                  `json:"executedSteps,omitempty"`
	CompensatedSteps []string                  `json:"compensatedSteps,omitempty"`
	Errors           []workflow.WorkflowError  `json:"errors,omitempty"`
	RetryCount       int                       `json:"retryCount"`
	MaxRetries       int                       `json:"maxRetries"`
	StartedAt        *time.Time                `json:"startedAt,omitempty"`
	CompletedAt      *time.Time                `json:"completedAt,omitempty"`
	Version          int64                     `json:"version"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

// WorkflowFromSnapshot maps a snapshot to its API view.
func WorkflowFromSnapshot(snap workflow.Snapshot) WorkflowResponse {
	steps := make([]StepResponse, 0, len(snap.Steps))
	for _, s := range snap.Steps {
		steps = append(steps, StepResponse{
			ID:             s.ID,
			Name:           s.Name,
			ServiceName:    s.ServiceName,
			Operation:      s.Operation,
			ExecutionOrder: s.ExecutionOrder,
			Status:         s.Status,
			RetryCount:     s.RetryCount,
			Output:         s.Output,
			LastError:      s.LastError,
			StartedAt:      s.StartedAt,
			CompletedAt:    s.CompletedAt,
			CompensatedAt:  s.CompensatedAt,
		})
	}

	return WorkflowResponse{
		ID:               snap.ID,
		DefinitionID:     snap.DefinitionID,
		Name:             snap.Name,
		Type:             snap.Type,
		Status:           snap.Status,
		Priority:         snap.Priority,
		CurrentStepID:    snap.CurrentStepID,
		TriggeredBy:      snap.TriggeredBy,
		CorrelationID:    snap.CorrelationID,
		Output:           snap.Output,
		Steps:            steps,
		ExecutedSteps:    snap.ExecutedSteps,
		CompensatedSteps: snap.CompensatedSteps,
		Errors:           snap.Errors,
		RetryCount:       snap.RetryCount,
		MaxRetries:       snap.MaxRetries,
		StartedAt:        snap.StartedAt,
		CompletedAt:      snap.CompletedAt,
		Version:          snap.Version,
		CreatedAt:        snap.CreatedAt,
		UpdatedAt:        snap.UpdatedAt,
	}
}

// WorkflowListResponse wraps a list query result.
type WorkflowListResponse struct {
	Workflows []WorkflowResponse `json:"workflows"`
	Count     int                `json:"count"`
}

// WavelessMetricsResponse is the admission queue summary.
type WavelessMetricsResponse struct {
	PendingTotal    int64                             `json:"pendingTotal"`
	ByPriority      map[workflow.WorkflowPriority]int `json:"byPriority"`
	ActiveTotal     int                               `json:"activeTotal"`
	AverageProgress float64                           `json:"averageProgress"`
}

func wavelessMetricsResponse(m waveless.QueueMetrics) WavelessMetricsResponse {
	return WavelessMetricsResponse{
		PendingTotal:    m.PendingTotal,
		ByPriority:      m.ByPriority,
		ActiveTotal:     m.ActiveTotal,
		AverageProgress: m.AverageProgress,
	}
}
