package workflow

import "time"

// Snapshot is the full observable state of a workflow: what the repository
// persists and what tests compare. Steps appear in execution order. The
// outbox is deliberately absent; pending events never survive a round trip.
type Snapshot struct {
	ID               string
	DefinitionID     string
	Name             string
	Type             WorkflowType
	Status           WorkflowStatus
	Priority         WorkflowPriority
	CurrentStepID    string
	TriggeredBy      string
	CorrelationID    string
	Input            map[string]any
	Output           map[string]any
	Context          map[string]any
	Steps            []*Step
	ExecutedSteps    []string
	CompensatedSteps []string
	Errors           []WorkflowError
	RetryCount       int
	MaxRetries       int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Snapshot captures the workflow state for persistence.
func (w *Workflow) Snapshot() Snapshot {
	steps := make([]*Step, 0, len(w.stepOrder))
	for _, id := range w.stepOrder {
		s := *w.steps[id]
		steps = append(steps, &s)
	}
	return Snapshot{
		ID:               w.ID,
		DefinitionID:     w.DefinitionID,
		Name:             w.Name,
		Type:             w.Type,
		Status:           w.Status,
		Priority:         w.Priority,
		CurrentStepID:    w.CurrentStepID,
		TriggeredBy:      w.TriggeredBy,
		CorrelationID:    w.CorrelationID,
		Input:            w.Input,
		Output:           w.Output,
		Context:          w.Context,
		Steps:            steps,
		ExecutedSteps:    append([]string(nil), w.ExecutedSteps...),
		CompensatedSteps: append([]string(nil), w.CompensatedSteps...),
		Errors:           append([]WorkflowError(nil), w.Errors...),
		RetryCount:       w.RetryCount,
		MaxRetries:       w.MaxRetries,
		StartedAt:        w.StartedAt,
		CompletedAt:      w.CompletedAt,
		Version:          w.Version,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

// FromSnapshot rehydrates a workflow from persisted state. The event outbox
// starts empty.
func FromSnapshot(s Snapshot) *Workflow {
	w := &Workflow{
		ID:               s.ID,
		DefinitionID:     s.DefinitionID,
		Name:             s.Name,
		Type:             s.Type,
		Status:           s.Status,
		Priority:         s.Priority,
		CurrentStepID:    s.CurrentStepID,
		TriggeredBy:      s.TriggeredBy,
		CorrelationID:    s.CorrelationID,
		Input:            s.Input,
		Output:           s.Output,
		Context:          s.Context,
		ExecutedSteps:    append([]string(nil), s.ExecutedSteps...),
		CompensatedSteps: append([]string(nil), s.CompensatedSteps...),
		Errors:           append([]WorkflowError(nil), s.Errors...),
		RetryCount:       s.RetryCount,
		MaxRetries:       s.MaxRetries,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		steps:            make(map[string]*Step, len(s.Steps)),
	}
	if w.Context == nil {
		w.Context = make(map[string]any)
	}
	for _, step := range s.Steps {
		cp := *step
		w.stepOrder = append(w.stepOrder, cp.ID)
		w.steps[cp.ID] = &cp
	}
	return w
}

// SetVersion is used by the repository after a successful save to reflect
// the stored version on the in-process aggregate.
func (w *Workflow) SetVersion(v int64) {
	w.Version = v
}
