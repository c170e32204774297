package repository

import (
	"time"

	"github.com/paklog/orchestration/internal/workflow"
)

// workflowDocument is the persisted shape of a workflow. It is a plain
// record: no behavior, no event queue. Durations are stored as
// milliseconds so the documents stay readable from the shell.
type workflowDocument struct {
	ID               string          `bson:"_id"`
	DefinitionID     string          `bson:"definitionId"`
	Name             string          `bson:"name"`
	Type             string          `bson:"type"`
	Status           string          `bson:"status"`
	Priority         string          `bson:"priority"`
	CurrentStepID    string          `bson:"currentStepId,omitempty"`
	TriggeredBy      string          `bson:"triggeredBy,omitempty"`
	CorrelationID    string          `bson:"correlationId,omitempty"`
	Input            map[string]any  `bson:"input,omitempty"`
	Output           map[string]any  `bson:"output,omitempty"`
	Context          map[string]any  `bson:"context,omitempty"`
	Steps            []stepDocument  `bson:"steps"`
	ExecutedSteps    []string        `bson:"executedSteps"`
	CompensatedSteps []string        `bson:"compensatedSteps"`
	Errors           []errorDocument `bson:"errors,omitempty"`
	RetryCount       int             `bson:"retryCount"`
	MaxRetries       int             `bson:"maxRetries"`
	StartedAt        *time.Time      `bson:"startedAt,omitempty"`
	CompletedAt      *time.Time      `bson:"completedAt,omitempty"`
	Version          int64           `bson:"version"`
	CreatedAt        time.Time       `bson:"createdAt"`
	UpdatedAt        time.Time       `bson:"updatedAt"`
}

type stepDocument struct {
	ID             string                `bson:"id"`
	Name           string                `bson:"name"`
	Type           string                `bson:"type,omitempty"`
	ServiceName    string                `bson:"serviceName"`
	Operation      string                `bson:"operation"`
	ExecutionOrder int                   `bson:"executionOrder"`
	DependsOn      []string              `bson:"dependsOn,omitempty"`
	Status         string                `bson:"status"`
	Input          map[string]any        `bson:"input,omitempty"`
	Output         map[string]any        `bson:"output,omitempty"`
	Result         *resultDocument       `bson:"result,omitempty"`
	LastError      *errorDocument        `bson:"lastError,omitempty"`
	RetryPolicy    retryPolicyDocument   `bson:"retryPolicy"`
	RetryCount     int                   `bson:"retryCount"`
	Compensation   *compensationDocument `bson:"compensation,omitempty"`
	TimeoutMs      int64                 `bson:"timeoutMs"`
	StartedAt      *time.Time            `bson:"startedAt,omitempty"`
	CompletedAt    *time.Time            `bson:"completedAt,omitempty"`
	CompensatedAt  *time.Time            `bson:"compensatedAt,omitempty"`
}

type retryPolicyDocument struct {
	MaxRetries     int     `bson:"maxRetries"`
	InitialDelayMs int64   `bson:"initialDelayMs"`
	MaxDelayMs     int64   `bson:"maxDelayMs"`
	Multiplier     float64 `bson:"multiplier"`
	Exponential    bool    `bson:"exponential"`
}

type compensationDocument struct {
	Strategy    string            `bson:"strategy"`
	ServiceName string            `bson:"serviceName"`
	Operation   string            `bson:"operation"`
	Parameters  map[string]string `bson:"parameters,omitempty"`
	Idempotent  bool              `bson:"idempotent"`
	MaxRetries  int               `bson:"maxRetries"`
	TimeoutMs   int64             `bson:"timeoutMs"`
}

type resultDocument struct {
	Success     bool           `bson:"success"`
	Output      map[string]any `bson:"output,omitempty"`
	Error       *errorDocument `bson:"error,omitempty"`
	CompletedAt time.Time      `bson:"completedAt"`
}

type errorDocument struct {
	ID          string         `bson:"id"`
	Type        string         `bson:"type"`
	Code        string         `bson:"code,omitempty"`
	Message     string         `bson:"message"`
	ServiceName string         `bson:"serviceName,omitempty"`
	StepID      string         `bson:"stepId,omitempty"`
	OccurredAt  time.Time      `bson:"occurredAt"`
	Recoverable bool           `bson:"recoverable"`
	Details     map[string]any `bson:"details,omitempty"`
}

func toDocument(s workflow.Snapshot) workflowDocument {
	doc := workflowDocument{
		ID:               s.ID,
		DefinitionID:     s.DefinitionID,
		Name:             s.Name,
		Type:             string(s.Type),
		Status:           string(s.Status),
		Priority:         string(s.Priority),
		CurrentStepID:    s.CurrentStepID,
		TriggeredBy:      s.TriggeredBy,
		CorrelationID:    s.CorrelationID,
		Input:            s.Input,
		Output:           s.Output,
		Context:          s.Context,
		Steps:            make([]stepDocument, 0, len(s.Steps)),
		ExecutedSteps:    emptyIfNil(s.ExecutedSteps),
		CompensatedSteps: emptyIfNil(s.CompensatedSteps),
		RetryCount:       s.RetryCount,
		MaxRetries:       s.MaxRetries,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	for _, step := range s.Steps {
		doc.Steps = append(doc.Steps, toStepDocument(step))
	}
	for _, e := range s.Errors {
		doc.Errors = append(doc.Errors, toErrorDocument(e))
	}
	return doc
}

func toStepDocument(s *workflow.Step) stepDocument {
	doc := stepDocument{
		ID:             s.ID,
		Name:           s.Name,
		Type:           s.Type,
		ServiceName:    s.ServiceName,
		Operation:      s.Operation,
		ExecutionOrder: s.ExecutionOrder,
		DependsOn:      s.DependsOn,
		Status:         string(s.Status),
		Input:          s.Input,
		Output:         s.Output,
		RetryPolicy: retryPolicyDocument{
			MaxRetries:     s.RetryPolicy.MaxRetries,
			InitialDelayMs: s.RetryPolicy.InitialDelay.Milliseconds(),
			MaxDelayMs:     s.RetryPolicy.MaxDelay.Milliseconds(),
			Multiplier:     s.RetryPolicy.Multiplier,
			Exponential:    s.RetryPolicy.Exponential,
		},
		RetryCount:    s.RetryCount,
		TimeoutMs:     s.Timeout.Milliseconds(),
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		CompensatedAt: s.CompensatedAt,
	}
	if s.Result != nil {
		r := resultDocument{
			Success:     s.Result.Success,
			Output:      s.Result.Output,
			CompletedAt: s.Result.CompletedAt,
		}
		if s.Result.Error != nil {
			e := toErrorDocument(*s.Result.Error)
			r.Error = &e
		}
		doc.Result = &r
	}
	if s.LastError != nil {
		e := toErrorDocument(*s.LastError)
		doc.LastError = &e
	}
	if s.Compensation != nil {
		doc.Compensation = &compensationDocument{
			Strategy:    string(s.Compensation.Strategy),
			ServiceName: s.Compensation.ServiceName,
			Operation:   s.Compensation.Operation,
			Parameters:  s.Compensation.Parameters,
			Idempotent:  s.Compensation.Idempotent,
			MaxRetries:  s.Compensation.MaxRetries,
			TimeoutMs:   s.Compensation.Timeout.Milliseconds(),
		}
	}
	return doc
}

func toErrorDocument(e workflow.WorkflowError) errorDocument {
	return errorDocument{
		ID:          e.ID,
		Type:        string(e.Type),
		Code:        e.Code,
		Message:     e.Message,
		ServiceName: e.ServiceName,
		StepID:      e.StepID,
		OccurredAt:  e.OccurredAt,
		Recoverable: e.Recoverable,
		Details:     e.Details,
	}
}

func (d workflowDocument) toSnapshot() workflow.Snapshot {
	s := workflow.Snapshot{
		ID:               d.ID,
		DefinitionID:     d.DefinitionID,
		Name:             d.Name,
		Type:             workflow.WorkflowType(d.Type),
		Status:           workflow.WorkflowStatus(d.Status),
		Priority:         workflow.WorkflowPriority(d.Priority),
		CurrentStepID:    d.CurrentStepID,
		TriggeredBy:      d.TriggeredBy,
		CorrelationID:    d.CorrelationID,
		Input:            d.Input,
		Output:           d.Output,
		Context:          d.Context,
		Steps:            make([]*workflow.Step, 0, len(d.Steps)),
		ExecutedSteps:    emptyIfNil(d.ExecutedSteps),
		CompensatedSteps: emptyIfNil(d.CompensatedSteps),
		RetryCount:       d.RetryCount,
		MaxRetries:       d.MaxRetries,
		StartedAt:        d.StartedAt,
		CompletedAt:      d.CompletedAt,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	for _, sd := range d.Steps {
		s.Steps = append(s.Steps, sd.toStep())
	}
	for _, ed := range d.Errors {
		s.Errors = append(s.Errors, ed.toError())
	}
	return s
}

func (d stepDocument) toStep() *workflow.Step {
	step := &workflow.Step{
		ID:             d.ID,
		Name:           d.Name,
		Type:           d.Type,
		ServiceName:    d.ServiceName,
		Operation:      d.Operation,
		ExecutionOrder: d.ExecutionOrder,
		DependsOn:      d.DependsOn,
		Status:         workflow.StepStatus(d.Status),
		Input:          d.Input,
		Output:         d.Output,
		RetryPolicy: workflow.RetryPolicy{
			MaxRetries:   d.RetryPolicy.MaxRetries,
			InitialDelay: time.Duration(d.RetryPolicy.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(d.RetryPolicy.MaxDelayMs) * time.Millisecond,
			Multiplier:   d.RetryPolicy.Multiplier,
			Exponential:  d.RetryPolicy.Exponential,
		},
		RetryCount:    d.RetryCount,
		Timeout:       time.Duration(d.TimeoutMs) * time.Millisecond,
		StartedAt:     d.StartedAt,
		CompletedAt:   d.CompletedAt,
		CompensatedAt: d.CompensatedAt,
	}
	if d.Result != nil {
		r := workflow.StepResult{
			Success:     d.Result.Success,
			Output:      d.Result.Output,
			CompletedAt: d.Result.CompletedAt,
		}
		if d.Result.Error != nil {
			e := d.Result.Error.toError()
			r.Error = &e
		}
		step.Result = &r
	}
	if d.LastError != nil {
		e := d.LastError.toError()
		step.LastError = &e
	}
	if d.Compensation != nil {
		step.Compensation = &workflow.CompensationAction{
			Strategy:    workflow.CompensationStrategy(d.Compensation.Strategy),
			ServiceName: d.Compensation.ServiceName,
			Operation:   d.Compensation.Operation,
			Parameters:  d.Compensation.Parameters,
			Idempotent:  d.Compensation.Idempotent,
			MaxRetries:  d.Compensation.MaxRetries,
			Timeout:     time.Duration(d.Compensation.TimeoutMs) * time.Millisecond,
		}
	}
	return step
}

func (d errorDocument) toError() workflow.WorkflowError {
	return workflow.WorkflowError{
		ID:          d.ID,
		Type:        workflow.ErrorType(d.Type),
		Code:        d.Code,
		Message:     d.Message,
		ServiceName: d.ServiceName,
		StepID:      d.StepID,
		OccurredAt:  d.OccurredAt,
		Recoverable: d.Recoverable,
		Details:     d.Details,
	}
}

// emptyIfNil keeps list fields as empty arrays in storage instead of null.
func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
