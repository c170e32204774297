package event

import (
	"context"
	"sync"

	"github.com/paklog/orchestration/internal/workflow"
)

// Projection rebuilds a read model of workflow outcomes from the event
// stream. Consumers tolerate duplicates: each event id is applied once.
type Projection struct {
	mu        sync.RWMutex
	workflows map[string]*ProjectedWorkflow
	seen      map[string]struct{}
}

// ProjectedWorkflow is the replayed view of one workflow.
type ProjectedWorkflow struct {
	ID                     string
	Status                 workflow.WorkflowStatus
	ExecutedSteps          []string
	CompensatedSteps       []string
	RetryCount             int
	CompensationSuccessful *bool
	Cancelled              bool
	FailedStepID           string
}

// NewProjection creates an empty projection.
func NewProjection() *Projection {
	return &Projection{
		workflows: make(map[string]*ProjectedWorkflow),
		seen:      make(map[string]struct{}),
	}
}

// Handle implements Subscriber so the projection can follow a bus.
func (p *Projection) Handle(_ context.Context, e workflow.DomainEvent) error {
	p.Apply(e)
	return nil
}

// Apply folds one event into the projection. Duplicate event ids are
// ignored.
func (p *Projection) Apply(e workflow.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.seen[e.EventID()]; dup {
		return
	}
	p.seen[e.EventID()] = struct{}{}

	pw, ok := p.workflows[e.AggregateID()]
	if !ok {
		pw = &ProjectedWorkflow{ID: e.AggregateID(), Status: workflow.StatusPending}
		p.workflows[e.AggregateID()] = pw
	}

	switch ev := e.(type) {
	case workflow.WorkflowStarted:
		pw.Status = workflow.StatusExecuting
	case workflow.WorkflowStepExecuted:
		pw.ExecutedSteps = append(pw.ExecutedSteps, ev.StepID)
	case workflow.WorkflowStepFailed:
		// Retryable failures keep the workflow executing; the terminal
		// decision arrives as WorkflowFailed.
	case workflow.WorkflowCompleted:
		pw.Status = workflow.StatusCompleted
	case workflow.WorkflowFailed:
		pw.Status = workflow.StatusFailed
		pw.FailedStepID = ev.FailedStepID
	case workflow.WorkflowPaused:
		pw.Status = workflow.StatusPaused
	case workflow.WorkflowResumed:
		pw.Status = workflow.StatusExecuting
	case workflow.WorkflowCancelled:
		pw.Status = workflow.StatusCancelled
		pw.Cancelled = true
	case workflow.WorkflowRetry:
		pw.Status = workflow.StatusExecuting
		pw.RetryCount = ev.RetryCount
	case workflow.WorkflowCompensationStarted:
		pw.Status = workflow.StatusCompensating
	case workflow.WorkflowCompensationCompleted:
		pw.Status = workflow.StatusCompensated
		pw.CompensatedSteps = append([]string(nil), ev.CompensatedSteps...)
		successful := ev.Successful
		pw.CompensationSuccessful = &successful
	}
}

// Workflow returns the projected view of one workflow.
func (p *Projection) Workflow(id string) (*ProjectedWorkflow, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pw, ok := p.workflows[id]
	if !ok {
		return nil, false
	}
	cp := *pw
	return &cp, true
}
