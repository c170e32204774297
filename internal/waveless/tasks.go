package waveless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/paklog/orchestration/internal/execution"
	"github.com/paklog/orchestration/internal/repository"
	"github.com/paklog/orchestration/internal/workflow"
)

// TaskTypeStepRetry is the delayed task re-admitting a failed step after
// its backoff.
const TaskTypeStepRetry = "workflow:retry_step"

// QueueRetries is the queue step retries are dispatched to.
const QueueRetries = "workflow-retries"

type stepRetryPayload struct {
	WorkflowID string `json:"workflowId"`
	StepID     string `json:"stepId"`
}

// NewStepRetryTask builds the delayed task for one step retry.
func NewStepRetryTask(workflowID, stepID string) (*asynq.Task, error) {
	payload, err := json.Marshal(stepRetryPayload{WorkflowID: workflowID, StepID: stepID})
	if err != nil {
		return nil, fmt.Errorf("marshal step retry payload: %w", err)
	}
	return asynq.NewTask(TaskTypeStepRetry, payload, asynq.Queue(QueueRetries), asynq.MaxRetry(3)), nil
}

// RetryScheduler dispatches step retries through the delayed-task queue.
// It implements the execution service's RetryScheduler port.
type RetryScheduler struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewRetryScheduler creates a scheduler on the given task client.
func NewRetryScheduler(client *asynq.Client, logger *slog.Logger) *RetryScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryScheduler{
		client: client,
		logger: logger.With("component", "retry_scheduler"),
	}
}

// ScheduleRetry enqueues the step retry to run after the backoff delay.
func (s *RetryScheduler) ScheduleRetry(ctx context.Context, workflowID, stepID string, delay time.Duration) error {
	task, err := NewStepRetryTask(workflowID, stepID)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		return fmt.Errorf("enqueue step retry for %s/%s: %w", workflowID, stepID, err)
	}
	s.logger.Debug("step retry scheduled",
		"workflow_id", workflowID,
		"step_id", stepID,
		"delay", delay,
		"task_id", info.ID,
	)
	return nil
}

// StepExecutor is the slice of the execution service the retry handler
// needs.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, workflowID, stepID string) (*workflow.Workflow, error)
}

// NewStepRetryHandler returns the handler the task server runs when a step
// retry comes due. A workflow that moved on in the meantime (cancelled,
// compensated, deleted) drops the task; a contended lock lets the queue
// redeliver.
func NewStepRetryHandler(exec StepExecutor, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "retry_handler")
	return func(ctx context.Context, task *asynq.Task) error {
		var payload stepRetryPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal step retry payload: %v: %w", err, asynq.SkipRetry)
		}
		_, err := exec.ExecuteStep(ctx, payload.WorkflowID, payload.StepID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrNotFound), workflow.IsInvalidState(err):
			logger.Info("step retry dropped, workflow moved on",
				"workflow_id", payload.WorkflowID,
				"step_id", payload.StepID,
				"reason", err,
			)
			return nil
		case errors.Is(err, execution.ErrWorkflowBusy):
			return err
		default:
			return err
		}
	}
}

// RegisterHandlers mounts the waveless task handlers on the given mux.
func RegisterHandlers(mux *asynq.ServeMux, exec StepExecutor, logger *slog.Logger) {
	mux.HandleFunc(TaskTypeStepRetry, NewStepRetryHandler(exec, logger))
}
