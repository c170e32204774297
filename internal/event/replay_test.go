package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paklog/orchestration/internal/workflow"
)

func sagaDefinition() *workflow.WorkflowDefinition {
	reserve := workflow.ReverseOperation("inventory-service", "release_inventory")
	assign := workflow.ReverseOperation("robot-service", "unassign_robot")
	return &workflow.WorkflowDefinition{
		ID:   "def-replay",
		Name: "Replay",
		Type: workflow.TypeOrderFulfillment,
		Steps: []workflow.StepDefinition{
			{ID: "reserve-inventory", Name: "Reserve", ServiceName: "inventory-service", Operation: "reserve", ExecutionOrder: 1, Compensation: &reserve},
			{ID: "assign-robot", Name: "Assign", ServiceName: "robot-service", Operation: "assign", ExecutionOrder: 2, Compensation: &assign},
			{ID: "pick-items", Name: "Pick", ServiceName: "picking-service", Operation: "pick", ExecutionOrder: 3},
		},
	}
}

func replayAll(p *Projection, w *workflow.Workflow) {
	for _, e := range w.DomainEvents() {
		p.Apply(e)
	}
}

func TestReplayHappyPath(t *testing.T) {
	w, err := workflow.NewWorkflow("wf-r1", sagaDefinition(), workflow.PriorityNormal, "t", "", nil, testTime)
	require.NoError(t, err)
	require.NoError(t, w.Start(testTime))
	for _, id := range w.StepIDs() {
		require.NoError(t, w.StartStep(id, testTime))
		require.NoError(t, w.ExecuteStep(id, workflow.SuccessResult(nil, testTime), testTime))
	}
	require.NoError(t, w.Complete(testTime))

	p := NewProjection()
	replayAll(p, w)

	pw, ok := p.Workflow("wf-r1")
	require.True(t, ok)
	assert.Equal(t, w.Status, pw.Status)
	assert.Equal(t, w.ExecutedSteps, pw.ExecutedSteps)
	assert.Empty(t, pw.CompensatedSteps)
}

func TestReplayCompensatedOutcome(t *testing.T) {
	w, err := workflow.NewWorkflow("wf-r2", sagaDefinition(), workflow.PriorityNormal, "t", "", nil, testTime)
	require.NoError(t, err)
	require.NoError(t, w.Start(testTime))
	for _, id := range []string{"reserve-inventory", "assign-robot"} {
		require.NoError(t, w.StartStep(id, testTime))
		require.NoError(t, w.ExecuteStep(id, workflow.SuccessResult(nil, testTime), testTime))
	}
	require.NoError(t, w.StartStep("pick-items", testTime))
	boom := workflow.NewWorkflowError(workflow.ErrorBusinessRuleViolation, "NO_STOCK", "gone", testTime)
	_, err = w.HandleStepFailure("pick-items", boom, testTime)
	require.NoError(t, err)
	require.NoError(t, w.Compensate("stock gone", testTime))
	for _, id := range w.StepsRequiringCompensation() {
		require.NoError(t, w.CompensateStep(id, testTime))
		require.NoError(t, w.MarkStepCompensated(id, testTime))
	}
	require.NoError(t, w.CompleteCompensation(testTime))

	p := NewProjection()
	replayAll(p, w)

	pw, ok := p.Workflow("wf-r2")
	require.True(t, ok)
	assert.Equal(t, workflow.StatusCompensated, pw.Status)
	assert.Equal(t, []string{"assign-robot", "reserve-inventory"}, pw.CompensatedSteps)
	require.NotNil(t, pw.CompensationSuccessful)
	assert.True(t, *pw.CompensationSuccessful)
	assert.Equal(t, "pick-items", pw.FailedStepID)
}

func TestReplayTolerantOfDuplicates(t *testing.T) {
	w, err := workflow.NewWorkflow("wf-r3", sagaDefinition(), workflow.PriorityNormal, "t", "", nil, testTime)
	require.NoError(t, err)
	require.NoError(t, w.Start(testTime))
	require.NoError(t, w.StartStep("reserve-inventory", testTime))
	require.NoError(t, w.ExecuteStep("reserve-inventory", workflow.SuccessResult(nil, testTime), testTime))

	p := NewProjection()
	// At-least-once delivery: apply the whole stream twice.
	replayAll(p, w)
	replayAll(p, w)

	pw, ok := p.Workflow("wf-r3")
	require.True(t, ok)
	assert.Equal(t, []string{"reserve-inventory"}, pw.ExecutedSteps, "duplicate events are applied once")
}

func TestReplayCancelledOutcome(t *testing.T) {
	w, err := workflow.NewWorkflow("wf-r4", sagaDefinition(), workflow.PriorityNormal, "t", "", nil, testTime)
	require.NoError(t, err)
	require.NoError(t, w.Start(testTime))
	require.NoError(t, w.Pause("load", testTime))
	require.NoError(t, w.Cancel("operator", testTime))

	p := NewProjection()
	replayAll(p, w)

	pw, ok := p.Workflow("wf-r4")
	require.True(t, ok)
	assert.Equal(t, workflow.StatusCancelled, pw.Status)
	assert.True(t, pw.Cancelled)
}
