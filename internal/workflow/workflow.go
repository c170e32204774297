package workflow

import (
	"fmt"
	"time"
)

const defaultMaxRetries = 3

// Workflow is the aggregate root of the orchestration domain. It owns its
// steps, logs, errors, and the pending domain-event queue exclusively; all
// collaborators mutate it only through its methods, under the per-workflow
// lock. Methods mutate in-process state and append events; they perform no
// I/O.
type Workflow struct {
	ID            string
	DefinitionID  string
	Name          string
	Type          WorkflowType
	Status        WorkflowStatus
	Priority      WorkflowPriority
	CurrentStepID string
	TriggeredBy   string
	CorrelationID string

	Input   map[string]any
	Output  map[string]any
	Context map[string]any

	ExecutedSteps    []string
	CompensatedSteps []string
	Errors           []WorkflowError

	RetryCount int
	MaxRetries int

	StartedAt   *time.Time
	CompletedAt *time.Time

	// Version is the optimistic-concurrency token. The repository
	// increments it on every successful save; the aggregate never does.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	stepOrder []string
	steps     map[string]*Step
	events    []DomainEvent
}

// NewWorkflow creates a pending workflow from a definition. Step retry
// policies default to the policy matching the workflow priority unless the
// definition overrides them.
func NewWorkflow(id string, def *WorkflowDefinition, priority WorkflowPriority, triggeredBy, correlationID string, input map[string]any, now time.Time) (*Workflow, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition %s: %w", def.ID, err)
	}
	if !priority.IsValid() {
		priority = PriorityNormal
	}

	w := &Workflow{
		ID:            id,
		DefinitionID:  def.ID,
		Name:          def.Name,
		Type:          def.Type,
		Status:        StatusPending,
		Priority:      priority,
		TriggeredBy:   triggeredBy,
		CorrelationID: correlationID,
		Input:         input,
		Context:       make(map[string]any),
		MaxRetries:    defaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
		steps:         make(map[string]*Step),
	}

	for _, sd := range def.Steps {
		step := sd.newStep()
		if sd.RetryPolicy == nil {
			step.RetryPolicy = PolicyForPriority(priority)
		}
		w.stepOrder = append(w.stepOrder, step.ID)
		w.steps[step.ID] = step
	}
	if len(w.stepOrder) > 0 {
		w.CurrentStepID = w.stepOrder[0]
	}
	return w, nil
}

func (w *Workflow) invalidState(op string) error {
	return &InvalidStateError{Entity: "workflow", ID: w.ID, Current: w.Status.String(), Operation: op}
}

func (w *Workflow) transitionTo(target WorkflowStatus, op string, now time.Time) error {
	if !w.Status.CanTransitionTo(target) {
		return w.invalidState(op)
	}
	w.Status = target
	w.UpdatedAt = now
	return nil
}

// Step returns the step with the given id.
func (w *Workflow) Step(id string) (*Step, bool) {
	s, ok := w.steps[id]
	return s, ok
}

// Steps returns the steps in execution order.
func (w *Workflow) Steps() []*Step {
	out := make([]*Step, 0, len(w.stepOrder))
	for _, id := range w.stepOrder {
		out = append(out, w.steps[id])
	}
	return out
}

// StepIDs returns the step ids in execution order.
func (w *Workflow) StepIDs() []string {
	out := make([]string, len(w.stepOrder))
	copy(out, w.stepOrder)
	return out
}

// Start transitions the workflow from PENDING to EXECUTING.
func (w *Workflow) Start(now time.Time) error {
	if w.Status != StatusPending {
		return w.invalidState("start")
	}
	if err := w.transitionTo(StatusExecuting, "start", now); err != nil {
		return err
	}
	w.StartedAt = &now
	w.RetryCount = 0
	w.record(WorkflowStarted{
		eventBase:     newEventBase(EventWorkflowStarted, w.ID, w.Version, now),
		DefinitionID:  w.DefinitionID,
		WorkflowType:  w.Type,
		CorrelationID: w.CorrelationID,
		StartedAt:     now,
	})
	return nil
}

// StartStep begins execution of a step and makes it current.
func (w *Workflow) StartStep(stepID string, now time.Time) error {
	if w.Status != StatusExecuting {
		return w.invalidState("start step")
	}
	step, ok := w.steps[stepID]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	if err := step.Start(now); err != nil {
		return err
	}
	w.CurrentStepID = stepID
	w.UpdatedAt = now
	return nil
}

// ExecuteStep records a successful step result, appends the step to the
// executed log, and advances the current step pointer.
func (w *Workflow) ExecuteStep(stepID string, result StepResult, now time.Time) error {
	if w.Status != StatusExecuting {
		return w.invalidState("execute step")
	}
	step, ok := w.steps[stepID]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	if err := step.MarkCompleted(result, now); err != nil {
		return err
	}
	w.appendExecuted(stepID)
	w.CurrentStepID = w.NextPendingStepID()
	w.UpdatedAt = now
	w.record(WorkflowStepExecuted{
		eventBase: newEventBase(EventWorkflowStepExecuted, w.ID, w.Version, now),
		StepID:    stepID,
		StepName:  step.Name,
		Result:    result,
	})
	return nil
}

// appendExecuted keeps the executed log free of duplicates. A step can
// complete only once, so the guard is belt over braces for rehydrated state.
func (w *Workflow) appendExecuted(stepID string) {
	for _, id := range w.ExecutedSteps {
		if id == stepID {
			return
		}
	}
	w.ExecutedSteps = append(w.ExecutedSteps, stepID)
}

// HandleStepFailure records a step failure and decides the immediate
// consequence: emit a retryable failure event, or fail the workflow when
// the error is non-recoverable and the retry budget is gone. It returns
// whether the step will be retried.
func (w *Workflow) HandleStepFailure(stepID string, failure WorkflowError, now time.Time) (bool, error) {
	step, ok := w.steps[stepID]
	if !ok {
		return false, fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	failure = failure.WithStep(stepID)
	if err := step.MarkFailed(failure, now); err != nil {
		return false, err
	}

	willRetry := step.CanRetry() && failure.Recoverable
	retryCount := step.RetryCount
	if willRetry {
		retryCount++
	}
	w.UpdatedAt = now
	w.record(WorkflowStepFailed{
		eventBase:  newEventBase(EventWorkflowStepFailed, w.ID, w.Version, now),
		StepID:     stepID,
		StepName:   step.Name,
		Failure:    failure,
		WillRetry:  willRetry,
		RetryCount: retryCount,
	})

	if !willRetry && !failure.Recoverable {
		if err := w.Fail(failure, now); err != nil {
			return false, err
		}
	}
	return willRetry, nil
}

// RetryStep returns a failed step to PENDING and makes it current again.
func (w *Workflow) RetryStep(stepID string, now time.Time) error {
	step, ok := w.steps[stepID]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	if err := step.ResetForRetry(); err != nil {
		return err
	}
	w.CurrentStepID = stepID
	w.UpdatedAt = now
	return nil
}

// Fail transitions the workflow to FAILED and records the error.
func (w *Workflow) Fail(failure WorkflowError, now time.Time) error {
	if err := w.transitionTo(StatusFailed, "fail", now); err != nil {
		return err
	}
	w.Errors = append(w.Errors, failure)
	w.CompletedAt = &now
	w.record(WorkflowFailed{
		eventBase:            newEventBase(EventWorkflowFailed, w.ID, w.Version, now),
		Failure:              failure,
		FailedStepID:         failure.StepID,
		CompensationRequired: failure.RequiresCompensation() && len(w.ExecutedSteps) > 0,
	})
	return nil
}

// Compensate begins backward recovery. Calling it on a workflow already
// compensating is a no-op.
func (w *Workflow) Compensate(reason string, now time.Time) error {
	if w.Status == StatusCompensating {
		return nil
	}
	if w.Status != StatusFailed {
		return w.invalidState("compensate")
	}
	if err := w.transitionTo(StatusCompensating, "compensate", now); err != nil {
		return err
	}
	w.record(WorkflowCompensationStarted{
		eventBase:         newEventBase(EventWorkflowCompensationStarted, w.ID, w.Version, now),
		StepsToCompensate: w.StepsRequiringCompensation(),
		Reason:            reason,
	})
	return nil
}

// CompensateStep moves one completed step into COMPENSATING.
func (w *Workflow) CompensateStep(stepID string, now time.Time) error {
	if w.Status != StatusCompensating {
		return w.invalidState("compensate step")
	}
	step, ok := w.steps[stepID]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	if err := step.Compensate(); err != nil {
		return err
	}
	w.UpdatedAt = now
	return nil
}

// MarkStepCompensated finishes one step's compensation and appends it to
// the compensated log. Already compensated steps are a no-op: the log entry
// is not duplicated and no event is emitted.
func (w *Workflow) MarkStepCompensated(stepID string, now time.Time) error {
	step, ok := w.steps[stepID]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	if step.IsCompensated() {
		return nil
	}
	if err := step.MarkCompensated(now); err != nil {
		return err
	}
	w.CompensatedSteps = append(w.CompensatedSteps, stepID)
	w.UpdatedAt = now
	return nil
}

// RecordCompensationFailure records one step's exhausted compensation
// without ending backward recovery: the step stays COMPENSATING and the
// steps behind it in the reverse walk are still attempted.
func (w *Workflow) RecordCompensationFailure(stepID, message string, now time.Time) error {
	if w.Status != StatusCompensating {
		return w.invalidState("record compensation failure")
	}
	step, ok := w.steps[stepID]
	if !ok {
		return fmt.Errorf("workflow %s: %w: %s", w.ID, ErrStepNotFound, stepID)
	}
	e := CompensationError(stepID, message, now)
	step.LastError = &e
	w.Errors = append(w.Errors, e)
	w.UpdatedAt = now
	return nil
}

// CompleteCompensation ends backward recovery with every required step
// undone.
func (w *Workflow) CompleteCompensation(now time.Time) error {
	if err := w.transitionTo(StatusCompensated, "complete compensation", now); err != nil {
		return err
	}
	w.CompletedAt = &now
	w.record(WorkflowCompensationCompleted{
		eventBase:        newEventBase(EventWorkflowCompensationCompleted, w.ID, w.Version, now),
		CompensatedSteps: append([]string(nil), w.CompensatedSteps...),
		Successful:       true,
	})
	return nil
}

// FailCompensation ends backward recovery after a compensation exhausted
// its budget. Partial compensation still yields a terminal state; operators
// reconcile the remainder out of band.
func (w *Workflow) FailCompensation(message string, now time.Time) error {
	if err := w.transitionTo(StatusCompensated, "fail compensation", now); err != nil {
		return err
	}
	w.CompletedAt = &now
	w.Errors = append(w.Errors, CompensationError("", message, now))
	w.record(WorkflowCompensationCompleted{
		eventBase:        newEventBase(EventWorkflowCompensationCompleted, w.ID, w.Version, now),
		CompensatedSteps: append([]string(nil), w.CompensatedSteps...),
		Successful:       false,
		ErrorMessage:     message,
	})
	return nil
}

// Retry returns a failed workflow to EXECUTING, consuming one workflow
// retry. Exceeding the budget fails with InvalidState and mutates nothing.
func (w *Workflow) Retry(now time.Time) error {
	if w.Status != StatusFailed {
		return w.invalidState("retry")
	}
	if w.RetryCount >= w.MaxRetries {
		return w.invalidState("retry")
	}
	if err := w.transitionTo(StatusExecuting, "retry", now); err != nil {
		return err
	}
	w.RetryCount++
	w.Errors = nil
	w.CompletedAt = nil
	w.record(WorkflowRetry{
		eventBase:  newEventBase(EventWorkflowRetry, w.ID, w.Version, now),
		RetryCount: w.RetryCount,
	})
	return nil
}

// Pause suspends an executing workflow.
func (w *Workflow) Pause(reason string, now time.Time) error {
	if w.Status != StatusExecuting {
		return w.invalidState("pause")
	}
	if err := w.transitionTo(StatusPaused, "pause", now); err != nil {
		return err
	}
	w.record(WorkflowPaused{
		eventBase:     newEventBase(EventWorkflowPaused, w.ID, w.Version, now),
		CurrentStepID: w.CurrentStepID,
		Reason:        reason,
	})
	return nil
}

// Resume returns a paused workflow to EXECUTING.
func (w *Workflow) Resume(now time.Time) error {
	if w.Status != StatusPaused {
		return w.invalidState("resume")
	}
	if err := w.transitionTo(StatusExecuting, "resume", now); err != nil {
		return err
	}
	w.record(WorkflowResumed{
		eventBase:  newEventBase(EventWorkflowResumed, w.ID, w.Version, now),
		FromStepID: w.CurrentStepID,
	})
	return nil
}

// Cancel terminates the workflow from any non-terminal state. Subsequent
// progress calls observe CANCELLED and fail with InvalidState.
func (w *Workflow) Cancel(reason string, now time.Time) error {
	if w.Status.IsTerminal() {
		return w.invalidState("cancel")
	}
	if err := w.transitionTo(StatusCancelled, "cancel", now); err != nil {
		return err
	}
	w.CompletedAt = &now
	w.record(WorkflowCancelled{
		eventBase: newEventBase(EventWorkflowCancelled, w.ID, w.Version, now),
		Reason:    reason,
	})
	return nil
}

// Complete finishes a workflow whose steps all succeeded.
func (w *Workflow) Complete(now time.Time) error {
	if w.Status != StatusExecuting {
		return w.invalidState("complete")
	}
	if err := w.transitionTo(StatusCompleted, "complete", now); err != nil {
		return err
	}
	w.CompletedAt = &now
	w.CurrentStepID = ""
	w.record(WorkflowCompleted{
		eventBase:  newEventBase(EventWorkflowCompleted, w.ID, w.Version, now),
		DurationMs: w.Duration().Milliseconds(),
		TotalSteps: len(w.stepOrder),
		Output:     w.Output,
	})
	return nil
}

// UpdateContext sets a key in the free-form execution context.
func (w *Workflow) UpdateContext(key string, value any) {
	if w.Context == nil {
		w.Context = make(map[string]any)
	}
	w.Context[key] = value
}

// ContextValue reads a key from the execution context.
func (w *Workflow) ContextValue(key string) (any, bool) {
	v, ok := w.Context[key]
	return v, ok
}

// CanTransitionToWaveless reports whether the workflow qualifies for
// waveless scheduling.
func (w *Workflow) CanTransitionToWaveless() bool {
	return w.Type.SupportsWaveless() && w.Status == StatusExecuting && w.Priority == PriorityHigh
}

// TransitionToWaveless opts the workflow into waveless scheduling with the
// given batch parameters.
func (w *Workflow) TransitionToWaveless(batchSize int, interval time.Duration, now time.Time) error {
	if !w.CanTransitionToWaveless() {
		return w.invalidState("transition to waveless")
	}
	w.UpdateContext("wavelessBatchSize", batchSize)
	w.UpdateContext("wavelessInterval", interval.String())
	w.UpdatedAt = now
	w.record(WavelessProcessingEnabled{
		eventBase: newEventBase(EventWavelessProcessingEnabled, w.ID, w.Version, now),
		BatchSize: batchSize,
		Interval:  interval,
	})
	return nil
}

// NextPendingStepID returns the first step in execution order that is
// PENDING with every declared dependency in the executed log, or empty
// when no step is admissible.
func (w *Workflow) NextPendingStepID() string {
	executed := make(map[string]struct{}, len(w.ExecutedSteps))
	for _, id := range w.ExecutedSteps {
		executed[id] = struct{}{}
	}
next:
	for _, id := range w.stepOrder {
		step := w.steps[id]
		if step.Status != StepPending {
			continue
		}
		for _, dep := range step.DependsOn {
			if _, ok := executed[dep]; !ok {
				continue next
			}
		}
		return id
	}
	return ""
}

// AllStepsCompleted reports whether every step is COMPLETED or SKIPPED.
func (w *Workflow) AllStepsCompleted() bool {
	for _, id := range w.stepOrder {
		switch w.steps[id].Status {
		case StepCompleted, StepSkipped:
		default:
			return false
		}
	}
	return true
}

// StepsRequiringCompensation returns the steps backward recovery must undo,
// in strict reverse of executed order.
func (w *Workflow) StepsRequiringCompensation() []string {
	var out []string
	for i := len(w.ExecutedSteps) - 1; i >= 0; i-- {
		id := w.ExecutedSteps[i]
		if step, ok := w.steps[id]; ok && step.RequiresCompensation() {
			out = append(out, id)
		}
	}
	return out
}

// ProgressPercent returns the share of steps completed or skipped, 0-100.
func (w *Workflow) ProgressPercent() float64 {
	if len(w.stepOrder) == 0 {
		return 0
	}
	done := 0
	for _, id := range w.stepOrder {
		switch w.steps[id].Status {
		case StepCompleted, StepSkipped:
			done++
		}
	}
	return float64(done) / float64(len(w.stepOrder)) * 100
}

// SystemLoad is one utilization observation of a single workflow: the
// share of its steps currently EXECUTING.
type SystemLoad struct {
	WorkflowID  string    `json:"workflowInstanceId"`
	ActiveSteps int       `json:"activeSteps"`
	TotalSteps  int       `json:"totalSteps"`
	Utilization float64   `json:"utilizationPercentage"`
	Timestamp   time.Time `json:"timestamp"`
}

// CalculateSystemLoad observes this workflow's contribution to system
// load.
func (w *Workflow) CalculateSystemLoad(now time.Time) SystemLoad {
	active := 0
	for _, id := range w.stepOrder {
		if w.steps[id].Status == StepExecuting {
			active++
		}
	}
	load := SystemLoad{
		WorkflowID:  w.ID,
		ActiveSteps: active,
		TotalSteps:  len(w.stepOrder),
		Timestamp:   now,
	}
	if load.TotalSteps > 0 {
		load.Utilization = float64(active) / float64(load.TotalSteps) * 100
	}
	return load
}

// HasTimedOut reports whether a started, non-terminal workflow exceeded the
// given wall-clock limit.
func (w *Workflow) HasTimedOut(limit time.Duration, now time.Time) bool {
	if w.StartedAt == nil || w.Status.IsTerminal() || limit <= 0 {
		return false
	}
	return now.Sub(*w.StartedAt) > limit
}

// Duration returns the wall time from start to completion, or to `now` at
// emission time for completed workflows.
func (w *Workflow) Duration() time.Duration {
	if w.StartedAt == nil {
		return 0
	}
	if w.CompletedAt != nil {
		return w.CompletedAt.Sub(*w.StartedAt)
	}
	return 0
}

// DomainEvents returns the pending outbox in emission order.
func (w *Workflow) DomainEvents() []DomainEvent {
	out := make([]DomainEvent, len(w.events))
	copy(out, w.events)
	return out
}

// ClearDomainEvents empties the outbox. The repository publishes after
// commit and then clears.
func (w *Workflow) ClearDomainEvents() {
	w.events = nil
}

func (w *Workflow) record(e DomainEvent) {
	w.events = append(w.events, e)
}
