// Package saga decides between forward and backward recovery for a failed
// workflow. The coordinator is deterministic given the workflow state and
// performs no I/O; remote compensation calls are the execution service's
// job.
package saga

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paklog/orchestration/internal/workflow"
)

// ContextKeyTransactionID is the workflow context key carrying the saga
// transaction id stamped at start.
const ContextKeyTransactionID = "sagaTransactionId"

// Coordinator drives saga recovery decisions on a workflow aggregate.
type Coordinator struct {
	logger *slog.Logger
}

// NewCoordinator creates a coordinator logging through the given logger.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger.With("component", "saga_coordinator")}
}

// StartSaga stamps a transaction id into the workflow context and starts
// the workflow.
func (c *Coordinator) StartSaga(w *workflow.Workflow, now time.Time) error {
	txID := uuid.NewString()
	w.UpdateContext(ContextKeyTransactionID, txID)
	if err := w.Start(now); err != nil {
		return err
	}
	c.logger.Info("saga started",
		"workflow_id", w.ID,
		"transaction_id", txID,
		"type", w.Type.String(),
	)
	return nil
}

// TransactionID returns the saga transaction id stamped at start, if any.
func (c *Coordinator) TransactionID(w *workflow.Workflow) string {
	if v, ok := w.ContextValue(ContextKeyTransactionID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ForwardRecovery re-admits a failed step if its retry budget allows. It
// returns the backoff delay the scheduler must honor and whether the retry
// was taken. A false return means the caller must switch to backward
// recovery.
func (c *Coordinator) ForwardRecovery(w *workflow.Workflow, stepID string, now time.Time) (time.Duration, bool, error) {
	step, ok := w.Step(stepID)
	if !ok {
		return 0, false, fmt.Errorf("workflow %s: %w: %s", w.ID, workflow.ErrStepNotFound, stepID)
	}
	if !step.CanRetry() {
		return 0, false, nil
	}
	delay := step.RetryDelay()
	if err := w.RetryStep(stepID, now); err != nil {
		return 0, false, err
	}
	c.logger.Info("forward recovery",
		"workflow_id", w.ID,
		"step_id", stepID,
		"attempt", step.RetryCount,
		"delay", delay,
	)
	return delay, true, nil
}

// BackwardRecovery begins compensation for a failed workflow. When no
// completed step requires compensation the saga closes immediately.
func (c *Coordinator) BackwardRecovery(w *workflow.Workflow, reason string, now time.Time) error {
	pending := w.StepsRequiringCompensation()
	if err := w.Compensate(reason, now); err != nil {
		return err
	}
	if len(pending) == 0 {
		c.logger.Info("backward recovery with nothing to undo", "workflow_id", w.ID)
		return w.CompleteCompensation(now)
	}
	c.logger.Info("backward recovery started",
		"workflow_id", w.ID,
		"steps_to_compensate", len(pending),
		"reason", reason,
	)
	return nil
}

// CompleteSaga finishes a workflow whose steps all succeeded.
func (c *Coordinator) CompleteSaga(w *workflow.Workflow, now time.Time) error {
	if err := w.Complete(now); err != nil {
		return err
	}
	c.logger.Info("saga completed", "workflow_id", w.ID, "duration", w.Duration())
	return nil
}

// FailSaga records a terminal failure and triggers backward recovery when
// the error demands it.
func (c *Coordinator) FailSaga(w *workflow.Workflow, failure workflow.WorkflowError, now time.Time) error {
	if w.Status != workflow.StatusFailed {
		if err := w.Fail(failure, now); err != nil {
			return err
		}
	}
	c.logger.Warn("saga failed",
		"workflow_id", w.ID,
		"error_type", string(failure.Type),
		"step_id", failure.StepID,
	)
	if failure.RequiresCompensation() && len(w.ExecutedSteps) > 0 {
		return c.BackwardRecovery(w, failure.Message, now)
	}
	return nil
}

// CheckConsistency reports whether every completed step can be undone.
// Admission uses it to refuse sagas that could strand partial state.
func (c *Coordinator) CheckConsistency(w *workflow.Workflow) bool {
	for _, step := range w.Steps() {
		if step.Status == workflow.StepCompleted && step.Compensation == nil {
			return false
		}
	}
	return true
}

// CompensationProgress returns the share of executed steps already
// compensated, 0-100. An empty executed log counts as fully compensated.
func (c *Coordinator) CompensationProgress(w *workflow.Workflow) float64 {
	if len(w.ExecutedSteps) == 0 {
		return 100
	}
	return float64(len(w.CompensatedSteps)) / float64(len(w.ExecutedSteps)) * 100
}
