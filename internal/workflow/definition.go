package workflow

import (
	"errors"
	"fmt"
	"time"
)

// Definition validation errors.
var (
	ErrNoSteps           = errors.New("definition has no steps")
	ErrDuplicateStep     = errors.New("duplicate step id")
	ErrBadStepOrder      = errors.New("step execution order must be sequential from 1")
	ErrUnknownDependency = errors.New("dependency references unknown step")
	ErrForwardDependency = errors.New("dependency references a later step")
)

// WorkflowDefinition is the template a workflow is instantiated from.
// Definitions are supplied as data; the engine does not define them.
type WorkflowDefinition struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Type    WorkflowType     `json:"type"`
	Version string           `json:"version,omitempty"`
	Steps   []StepDefinition `json:"steps"`
}

// StepDefinition describes one step of a template.
type StepDefinition struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           string              `json:"type,omitempty"`
	ServiceName    string              `json:"serviceName"`
	Operation      string              `json:"operation"`
	ExecutionOrder int                 `json:"executionOrder"`
	DependsOn      []string            `json:"dependsOn,omitempty"`
	RetryPolicy    *RetryPolicy        `json:"retryPolicy,omitempty"`
	Compensation   *CompensationAction `json:"compensation,omitempty"`
	Timeout        time.Duration       `json:"timeout,omitempty"`
}

func (sd StepDefinition) newStep() *Step {
	step := NewStep(sd.ID, sd.Name, sd.ServiceName, sd.Operation, sd.ExecutionOrder)
	step.Type = sd.Type
	step.DependsOn = append([]string(nil), sd.DependsOn...)
	if sd.RetryPolicy != nil {
		step.RetryPolicy = *sd.RetryPolicy
	}
	if sd.Compensation != nil {
		c := *sd.Compensation
		step.Compensation = &c
	}
	if sd.Timeout > 0 {
		step.Timeout = sd.Timeout
	}
	return step
}

// Validate checks structural soundness: at least one step, unique ids,
// execution order sequential from 1, and dependencies that reference only
// earlier steps.
func (d *WorkflowDefinition) Validate() error {
	if len(d.Steps) == 0 {
		return ErrNoSteps
	}
	position := make(map[string]int, len(d.Steps))
	for i, sd := range d.Steps {
		if _, dup := position[sd.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, sd.ID)
		}
		position[sd.ID] = i
		if sd.ExecutionOrder != i+1 {
			return fmt.Errorf("%w: step %s has order %d, want %d", ErrBadStepOrder, sd.ID, sd.ExecutionOrder, i+1)
		}
	}
	for i, sd := range d.Steps {
		for _, dep := range sd.DependsOn {
			j, ok := position[dep]
			if !ok {
				return fmt.Errorf("%w: step %s depends on %s", ErrUnknownDependency, sd.ID, dep)
			}
			if j >= i {
				return fmt.Errorf("%w: step %s depends on %s", ErrForwardDependency, sd.ID, dep)
			}
		}
	}
	return nil
}

// StepByID returns the step definition with the given id.
func (d *WorkflowDefinition) StepByID(id string) (*StepDefinition, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], true
		}
	}
	return nil, false
}
