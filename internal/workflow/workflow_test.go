package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fulfillmentDefinition() *WorkflowDefinition {
	reserveComp := ReverseOperation("inventory-service", "release_inventory")
	assignComp := ReverseOperation("robot-service", "unassign_robot")
	return &WorkflowDefinition{
		ID:   "def-order-fulfillment",
		Name: "Order Fulfillment",
		Type: TypeOrderFulfillment,
		Steps: []StepDefinition{
			{ID: "reserve-inventory", Name: "Reserve Inventory", ServiceName: "inventory-service", Operation: "reserve", ExecutionOrder: 1, Compensation: &reserveComp},
			{ID: "assign-robot", Name: "Assign Robot", ServiceName: "robot-service", Operation: "assign", ExecutionOrder: 2, DependsOn: []string{"reserve-inventory"}, Compensation: &assignComp},
			{ID: "pick-items", Name: "Pick Items", ServiceName: "picking-service", Operation: "pick", ExecutionOrder: 3, DependsOn: []string{"assign-robot"}},
		},
	}
}

func newTestWorkflow(t *testing.T) *Workflow {
	t.Helper()
	w, err := NewWorkflow("wf-1", fulfillmentDefinition(), PriorityNormal, "tester", "corr-1", map[string]any{"orderId": "ord-9"}, testTime)
	require.NoError(t, err)
	return w
}

func runStep(t *testing.T, w *Workflow, stepID string, at time.Time) {
	t.Helper()
	require.NoError(t, w.StartStep(stepID, at))
	require.NoError(t, w.ExecuteStep(stepID, SuccessResult(map[string]any{"ok": true}, at), at))
}

func TestNewWorkflow(t *testing.T) {
	w := newTestWorkflow(t)

	assert.Equal(t, StatusPending, w.Status)
	assert.Equal(t, []string{"reserve-inventory", "assign-robot", "pick-items"}, w.StepIDs())
	assert.Equal(t, "reserve-inventory", w.CurrentStepID)
	assert.Equal(t, int64(0), w.Version)
	assert.Empty(t, w.DomainEvents())
}

func TestWorkflowHappyPath(t *testing.T) {
	w := newTestWorkflow(t)
	now := testTime

	require.NoError(t, w.Start(now))
	for _, id := range w.StepIDs() {
		now = now.Add(time.Second)
		runStep(t, w, id, now)
	}
	require.True(t, w.AllStepsCompleted())
	require.NoError(t, w.Complete(now))

	assert.Equal(t, StatusCompleted, w.Status)
	assert.Equal(t, []string{"reserve-inventory", "assign-robot", "pick-items"}, w.ExecutedSteps)
	assert.Empty(t, w.CompensatedSteps)
	assert.InDelta(t, 100.0, w.ProgressPercent(), 0.001)

	types := eventTypes(w.DomainEvents())
	assert.Equal(t, []string{
		EventWorkflowStarted,
		EventWorkflowStepExecuted,
		EventWorkflowStepExecuted,
		EventWorkflowStepExecuted,
		EventWorkflowCompleted,
	}, types)
}

func TestCalculateSystemLoad(t *testing.T) {
	w := newTestWorkflow(t)

	load := w.CalculateSystemLoad(testTime)
	assert.Equal(t, "wf-1", load.WorkflowID)
	assert.Zero(t, load.ActiveSteps)
	assert.Equal(t, 3, load.TotalSteps)
	assert.Zero(t, load.Utilization)

	require.NoError(t, w.Start(testTime))
	require.NoError(t, w.StartStep("reserve-inventory", testTime))

	load = w.CalculateSystemLoad(testTime)
	assert.Equal(t, 1, load.ActiveSteps)
	assert.InDelta(t, 100.0/3, load.Utilization, 0.001)
	assert.Equal(t, testTime, load.Timestamp)
}

func TestNextPendingStepGatedByDependencies(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))

	assert.Equal(t, "reserve-inventory", w.NextPendingStepID())

	// A failed step is out of the executed log, so its dependents stay
	// inadmissible.
	require.NoError(t, w.StartStep("reserve-inventory", testTime))
	_, err := w.HandleStepFailure("reserve-inventory",
		TimeoutError("reserve-inventory", "inventory-service", testTime), testTime)
	require.NoError(t, err)
	assert.Empty(t, w.NextPendingStepID())

	runStep(t, w, "reserve-inventory", testTime)
	assert.Equal(t, "assign-robot", w.NextPendingStepID())
}

func TestWorkflowStatusMachine(t *testing.T) {
	tests := []struct {
		name string
		run  func(w *Workflow) error
	}{
		{"complete from pending", func(w *Workflow) error { return w.Complete(testTime) }},
		{"pause from pending", func(w *Workflow) error { return w.Pause("", testTime) }},
		{"resume from pending", func(w *Workflow) error { return w.Resume(testTime) }},
		{"compensate from pending", func(w *Workflow) error { return w.Compensate("", testTime) }},
		{"retry from pending", func(w *Workflow) error { return w.Retry(testTime) }},
		{"start twice", func(w *Workflow) error {
			if err := w.Start(testTime); err != nil {
				return err
			}
			return w.Start(testTime)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorkflow(t)
			err := tt.run(w)
			require.Error(t, err)
			assert.True(t, IsInvalidState(err), "want InvalidStateError, got %v", err)
		})
	}
}

func TestWorkflowTerminalIsAbsorbing(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	require.NoError(t, w.Cancel("operator", testTime))

	assert.True(t, IsInvalidState(w.Start(testTime)))
	assert.True(t, IsInvalidState(w.Pause("", testTime)))
	assert.True(t, IsInvalidState(w.Complete(testTime)))
	assert.True(t, IsInvalidState(w.Cancel("again", testTime)))
	assert.True(t, IsInvalidState(w.StartStep("reserve-inventory", testTime)))
}

func TestWorkflowCancelFromAnyNonTerminal(t *testing.T) {
	setups := map[string]func(t *testing.T) *Workflow{
		"pending": func(t *testing.T) *Workflow { return newTestWorkflow(t) },
		"executing": func(t *testing.T) *Workflow {
			w := newTestWorkflow(t)
			require.NoError(t, w.Start(testTime))
			return w
		},
		"paused": func(t *testing.T) *Workflow {
			w := newTestWorkflow(t)
			require.NoError(t, w.Start(testTime))
			require.NoError(t, w.Pause("", testTime))
			return w
		},
		"failed": func(t *testing.T) *Workflow {
			w := newTestWorkflow(t)
			require.NoError(t, w.Start(testTime))
			require.NoError(t, w.Fail(NewWorkflowError(ErrorInternal, "X", "boom", testTime), testTime))
			return w
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			w := setup(t)
			require.NoError(t, w.Cancel("shutdown", testTime))
			assert.Equal(t, StatusCancelled, w.Status)
		})
	}
}

func TestWorkflowRetryBudget(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))

	boom := NewWorkflowError(ErrorInternal, "X", "boom", testTime)
	for i := 0; i < w.MaxRetries; i++ {
		require.NoError(t, w.Fail(boom, testTime))
		require.NoError(t, w.Retry(testTime))
		assert.Equal(t, i+1, w.RetryCount)
		assert.Empty(t, w.Errors, "retry clears the error log")
	}

	require.NoError(t, w.Fail(boom, testTime))
	before := w.Snapshot()
	err := w.Retry(testTime)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, before.Status, w.Status)
	assert.Equal(t, before.RetryCount, w.RetryCount)
}

func TestWorkflowBackwardRecoveryOrder(t *testing.T) {
	w := newTestWorkflow(t)
	now := testTime
	require.NoError(t, w.Start(now))
	runStep(t, w, "reserve-inventory", now)
	runStep(t, w, "assign-robot", now)

	require.NoError(t, w.StartStep("pick-items", now))
	boom := NewWorkflowError(ErrorBusinessRuleViolation, "NO_STOCK", "item gone", now)
	willRetry, err := w.HandleStepFailure("pick-items", boom, now)
	require.NoError(t, err)
	assert.False(t, willRetry)
	assert.Equal(t, StatusFailed, w.Status)

	require.NoError(t, w.Compensate("business rule violation", now))
	assert.Equal(t, StatusCompensating, w.Status)
	assert.Equal(t, []string{"assign-robot", "reserve-inventory"}, w.StepsRequiringCompensation())

	for _, id := range w.StepsRequiringCompensation() {
		require.NoError(t, w.CompensateStep(id, now))
		require.NoError(t, w.MarkStepCompensated(id, now))
	}
	require.NoError(t, w.CompleteCompensation(now))

	assert.Equal(t, StatusCompensated, w.Status)
	assert.Equal(t, []string{"assign-robot", "reserve-inventory"}, w.CompensatedSteps)
	// The executed log stays append-only through compensation.
	assert.Equal(t, []string{"reserve-inventory", "assign-robot"}, w.ExecutedSteps)
	assert.LessOrEqual(t, len(w.CompensatedSteps), len(w.ExecutedSteps))

	types := eventTypes(w.DomainEvents())
	assert.Contains(t, types, EventWorkflowFailed)
	assert.Contains(t, types, EventWorkflowCompensationStarted)
	assert.Contains(t, types, EventWorkflowCompensationCompleted)
}

func TestWorkflowCompensationStartedPayload(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	runStep(t, w, "reserve-inventory", testTime)
	runStep(t, w, "assign-robot", testTime)
	require.NoError(t, w.Fail(NewWorkflowError(ErrorDataIntegrity, "X", "bad", testTime), testTime))
	require.NoError(t, w.Compensate("", testTime))

	var started *WorkflowCompensationStarted
	for _, e := range w.DomainEvents() {
		if ev, ok := e.(WorkflowCompensationStarted); ok {
			started = &ev
		}
	}
	require.NotNil(t, started)
	assert.Equal(t, []string{"assign-robot", "reserve-inventory"}, started.StepsToCompensate)
}

func TestWorkflowPartialCompensation(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	runStep(t, w, "reserve-inventory", testTime)
	runStep(t, w, "assign-robot", testTime)
	require.NoError(t, w.Fail(NewWorkflowError(ErrorBusinessRuleViolation, "X", "bad", testTime), testTime))
	require.NoError(t, w.Compensate("", testTime))

	require.NoError(t, w.CompensateStep("assign-robot", testTime))
	require.NoError(t, w.MarkStepCompensated("assign-robot", testTime))
	require.NoError(t, w.FailCompensation("compensation of reserve-inventory exhausted retries", testTime))

	assert.Equal(t, StatusCompensated, w.Status)
	assert.Equal(t, []string{"assign-robot"}, w.CompensatedSteps)

	last := w.DomainEvents()[len(w.DomainEvents())-1]
	done, ok := last.(WorkflowCompensationCompleted)
	require.True(t, ok)
	assert.False(t, done.Successful)
	assert.Contains(t, done.ErrorMessage, "reserve-inventory")
}

func TestMarkStepCompensatedIdempotent(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	runStep(t, w, "reserve-inventory", testTime)
	require.NoError(t, w.Fail(NewWorkflowError(ErrorInternal, "X", "bad", testTime), testTime))
	require.NoError(t, w.Compensate("", testTime))
	require.NoError(t, w.CompensateStep("reserve-inventory", testTime))
	require.NoError(t, w.MarkStepCompensated("reserve-inventory", testTime))

	events := len(w.DomainEvents())
	require.NoError(t, w.MarkStepCompensated("reserve-inventory", testTime))

	assert.Equal(t, []string{"reserve-inventory"}, w.CompensatedSteps)
	assert.Len(t, w.DomainEvents(), events)
}

func TestHandleStepFailureRetryable(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	require.NoError(t, w.StartStep("reserve-inventory", testTime))

	timeout := TimeoutError("reserve-inventory", "inventory-service", testTime)
	willRetry, err := w.HandleStepFailure("reserve-inventory", timeout, testTime)
	require.NoError(t, err)
	assert.True(t, willRetry)
	assert.Equal(t, StatusExecuting, w.Status, "retryable failure keeps the workflow executing")

	last := w.DomainEvents()[len(w.DomainEvents())-1]
	failed, ok := last.(WorkflowStepFailed)
	require.True(t, ok)
	assert.True(t, failed.WillRetry)
	assert.Equal(t, 1, failed.RetryCount)
}

func TestWorkflowPauseResume(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	require.NoError(t, w.Pause("load shedding", testTime))
	assert.Equal(t, StatusPaused, w.Status)
	assert.True(t, IsInvalidState(w.StartStep("reserve-inventory", testTime)))

	require.NoError(t, w.Resume(testTime))
	assert.Equal(t, StatusExecuting, w.Status)
}

func TestTransitionToWaveless(t *testing.T) {
	w, err := NewWorkflow("wf-wl", fulfillmentDefinition(), PriorityHigh, "tester", "", nil, testTime)
	require.NoError(t, err)

	assert.False(t, w.CanTransitionToWaveless(), "pending workflows do not qualify")
	require.NoError(t, w.Start(testTime))
	require.True(t, w.CanTransitionToWaveless())

	require.NoError(t, w.TransitionToWaveless(25, 2*time.Second, testTime))
	size, ok := w.ContextValue("wavelessBatchSize")
	require.True(t, ok)
	assert.Equal(t, 25, size)

	low, err := NewWorkflow("wf-low", fulfillmentDefinition(), PriorityLow, "tester", "", nil, testTime)
	require.NoError(t, err)
	require.NoError(t, low.Start(testTime))
	assert.False(t, low.CanTransitionToWaveless())
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := newTestWorkflow(t)
	require.NoError(t, w.Start(testTime))
	runStep(t, w, "reserve-inventory", testTime.Add(time.Second))
	require.NoError(t, w.StartStep("assign-robot", testTime.Add(2*time.Second)))
	_, err := w.HandleStepFailure("assign-robot", TimeoutError("assign-robot", "robot-service", testTime), testTime.Add(3*time.Second))
	require.NoError(t, err)
	w.SetVersion(4)

	restored := FromSnapshot(w.Snapshot())

	assert.Equal(t, w.Status, restored.Status)
	assert.Equal(t, w.ExecutedSteps, restored.ExecutedSteps)
	assert.Equal(t, w.CompensatedSteps, restored.CompensatedSteps)
	assert.Equal(t, w.Version, restored.Version)
	assert.Equal(t, w.StepIDs(), restored.StepIDs())
	orig, _ := w.Step("assign-robot")
	got, ok := restored.Step("assign-robot")
	require.True(t, ok)
	assert.Equal(t, orig.Status, got.Status)
	assert.Equal(t, orig.LastError.Type, got.LastError.Type)
	assert.Empty(t, restored.DomainEvents())
}

func eventTypes(events []DomainEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType())
	}
	return out
}
