package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     WorkflowDefinition
		wantErr error
	}{
		{
			name:    "no steps",
			def:     WorkflowDefinition{ID: "d", Name: "d", Type: TypePicking},
			wantErr: ErrNoSteps,
		},
		{
			name: "duplicate step id",
			def: WorkflowDefinition{ID: "d", Type: TypePicking, Steps: []StepDefinition{
				{ID: "a", ExecutionOrder: 1},
				{ID: "a", ExecutionOrder: 2},
			}},
			wantErr: ErrDuplicateStep,
		},
		{
			name: "non-sequential order",
			def: WorkflowDefinition{ID: "d", Type: TypePicking, Steps: []StepDefinition{
				{ID: "a", ExecutionOrder: 1},
				{ID: "b", ExecutionOrder: 3},
			}},
			wantErr: ErrBadStepOrder,
		},
		{
			name: "unknown dependency",
			def: WorkflowDefinition{ID: "d", Type: TypePicking, Steps: []StepDefinition{
				{ID: "a", ExecutionOrder: 1},
				{ID: "b", ExecutionOrder: 2, DependsOn: []string{"nope"}},
			}},
			wantErr: ErrUnknownDependency,
		},
		{
			name: "forward dependency",
			def: WorkflowDefinition{ID: "d", Type: TypePicking, Steps: []StepDefinition{
				{ID: "a", ExecutionOrder: 1, DependsOn: []string{"b"}},
				{ID: "b", ExecutionOrder: 2},
			}},
			wantErr: ErrForwardDependency,
		},
		{
			name: "valid",
			def:  *fulfillmentDefinition(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDefinitionStepsCarryDependencies(t *testing.T) {
	def := fulfillmentDefinition()

	w, err := NewWorkflow("wf-dep", def, PriorityNormal, "order-router", "", nil, testTime)
	require.NoError(t, err)

	step, ok := w.Step("pick-items")
	require.True(t, ok)
	assert.Equal(t, []string{"assign-robot"}, step.DependsOn)
}
