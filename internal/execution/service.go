// Package execution drives workflows end to end: it serializes all progress
// on one workflow behind its lock, invokes the remote services, routes
// failures through saga recovery, and commits state before publishing
// events.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paklog/orchestration/internal/event"
	"github.com/paklog/orchestration/internal/lock"
	"github.com/paklog/orchestration/internal/repository"
	"github.com/paklog/orchestration/internal/saga"
	"github.com/paklog/orchestration/internal/workflow"
)

// ErrWorkflowBusy is returned when the per-workflow lock could not be taken
// within the configured wait.
var ErrWorkflowBusy = errors.New("workflow busy")

// Config bounds the service's locking behavior.
type Config struct {
	// LockTTL is how long a held workflow lock lives without an extension.
	LockTTL time.Duration
	// LockMaxWait is how long a caller polls for a contended lock before
	// giving up with ErrWorkflowBusy.
	LockMaxWait time.Duration
}

// DefaultConfig returns the standard lock bounds.
func DefaultConfig() Config {
	return Config{
		LockTTL:     30 * time.Second,
		LockMaxWait: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl %v must be positive", c.LockTTL)
	}
	if c.LockMaxWait < 0 {
		return fmt.Errorf("lock max wait %v must not be negative", c.LockMaxWait)
	}
	return nil
}

// Service is the transactional entry point of the engine. Every mutation
// follows the same shape: acquire the workflow lock, load, mutate through
// the aggregate and coordinator, save with the version check, publish the
// outbox, release.
type Service struct {
	repo      repository.WorkflowRepository
	locks     lock.Lock
	publisher event.Publisher
	saga      *saga.Coordinator
	remote    RemoteCall
	retries   RetryScheduler
	clock     Clock
	config    Config
	logger    *slog.Logger
}

// NewService wires the execution service. A nil retries scheduler means
// retryable steps stay pending until a poller picks them up; a nil clock
// falls back to the system clock.
func NewService(repo repository.WorkflowRepository, locks lock.Lock, publisher event.Publisher, coordinator *saga.Coordinator, remote RemoteCall, retries RetryScheduler, clock Clock, cfg Config, logger *slog.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		locks:     locks,
		publisher: publisher,
		saga:      coordinator,
		remote:    remote,
		retries:   retries,
		clock:     clock,
		config:    cfg,
		logger:    logger.With("component", "execution_service"),
	}
}

// StartWorkflow instantiates a workflow from its definition, starts the
// saga, and commits it.
func (s *Service) StartWorkflow(ctx context.Context, id string, def *workflow.WorkflowDefinition, priority workflow.WorkflowPriority, triggeredBy, correlationID string, input map[string]any) (*workflow.Workflow, error) {
	now := s.clock.Now()
	w, err := workflow.NewWorkflow(id, def, priority, triggeredBy, correlationID, input, now)
	if err != nil {
		return nil, err
	}
	if err := s.saga.StartSaga(w, now); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ExecuteStep runs one step of the workflow: remote call, success or
// failure handling, and commit. The delayed-retry handler calls this after
// the backoff elapses.
func (s *Service) ExecuteStep(ctx context.Context, workflowID, stepID string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return s.executeStep(ctx, w, stepID)
	})
}

// ExecuteNextStep runs the first still-pending step and returns its id, or
// the empty string when nothing is pending.
func (s *Service) ExecuteNextStep(ctx context.Context, workflowID string) (string, error) {
	var stepID string
	_, err := s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		stepID = w.NextPendingStepID()
		if stepID == "" {
			return nil
		}
		return s.executeStep(ctx, w, stepID)
	})
	return stepID, err
}

// ProcessWorkflow drives a workflow as far as it will go in one lock hold:
// starts it if pending, then executes steps until one stalls or the
// workflow reaches a terminal state. The waveless scheduler admits batches
// through this.
func (s *Service) ProcessWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		if w.Status == workflow.StatusPending {
			if err := s.saga.StartSaga(w, s.clock.Now()); err != nil {
				return err
			}
		}
		for w.Status == workflow.StatusExecuting {
			stepID := w.NextPendingStepID()
			if stepID == "" {
				break
			}
			if err := s.executeStep(ctx, w, stepID); err != nil {
				return err
			}
			step, _ := w.Step(stepID)
			if step.Status != workflow.StepCompleted {
				// Failed with a scheduled retry, or the workflow
				// switched to recovery. Yield the lock.
				break
			}
		}
		return nil
	})
}

// FailStep records an externally observed step failure, for callers that
// detect failures out of band of a remote call.
func (s *Service) FailStep(ctx context.Context, workflowID, stepID string, failure workflow.WorkflowError) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return s.handleFailure(ctx, w, stepID, failure)
	})
}

// PauseWorkflow suspends an executing workflow.
func (s *Service) PauseWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return w.Pause(reason, s.clock.Now())
	})
}

// ResumeWorkflow returns a paused workflow to execution.
func (s *Service) ResumeWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return w.Resume(s.clock.Now())
	})
}

// CancelWorkflow terminates a workflow from any non-terminal state.
func (s *Service) CancelWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return w.Cancel(reason, s.clock.Now())
	})
}

// RetryWorkflow returns a failed workflow to execution, consuming one
// workflow retry.
func (s *Service) RetryWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return w.Retry(s.clock.Now())
	})
}

// CompensateWorkflow forces backward recovery on a failed workflow and runs
// the compensation calls.
func (s *Service) CompensateWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		if err := s.saga.BackwardRecovery(w, reason, s.clock.Now()); err != nil {
			return err
		}
		return s.runCompensation(ctx, w)
	})
}

// EnableWaveless opts an eligible workflow into waveless scheduling.
func (s *Service) EnableWaveless(ctx context.Context, workflowID string, batchSize int, interval time.Duration) (*workflow.Workflow, error) {
	return s.withWorkflow(ctx, workflowID, func(w *workflow.Workflow) error {
		return w.TransitionToWaveless(batchSize, interval, s.clock.Now())
	})
}

// GetWorkflow loads a workflow without taking its lock.
func (s *Service) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	return s.repo.FindByID(ctx, workflowID)
}

// withWorkflow is the transaction wrapper: lock, load, mutate, commit,
// release. A mutation error skips the commit entirely.
func (s *Service) withWorkflow(ctx context.Context, id string, fn func(w *workflow.Workflow) error) (*workflow.Workflow, error) {
	ok, err := lock.Acquire(ctx, s.locks, id, s.config.LockTTL, s.config.LockMaxWait)
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrWorkflowBusy)
	}
	defer func() {
		if err := s.locks.Release(ctx, id); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			s.logger.Warn("lock release failed", "workflow_id", id, "error", err)
		}
	}()

	w, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// commit persists the aggregate, then publishes its outbox. Events are
// never published for a failed save; a failed publish leaves the outbox
// intact for redelivery.
func (s *Service) commit(ctx context.Context, w *workflow.Workflow) error {
	if err := s.repo.Save(ctx, w); err != nil {
		return fmt.Errorf("save workflow %s: %w", w.ID, err)
	}
	if err := event.DrainOutbox(ctx, s.publisher, w); err != nil {
		s.logger.Error("event publish failed, outbox retained",
			"workflow_id", w.ID,
			"error", err,
		)
		return err
	}
	return nil
}

func (s *Service) executeStep(ctx context.Context, w *workflow.Workflow, stepID string) error {
	now := s.clock.Now()
	if err := w.StartStep(stepID, now); err != nil {
		return err
	}
	step, _ := w.Step(stepID)

	callCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	output, callErr := s.remote.Call(callCtx, step.ServiceName, step.Operation, s.stepRequest(w, step))
	now = s.clock.Now()
	if callErr != nil {
		return s.handleFailure(ctx, w, stepID, s.mapRemoteError(step, callErr, now))
	}

	if err := w.ExecuteStep(stepID, workflow.SuccessResult(output, now), now); err != nil {
		return err
	}
	if w.AllStepsCompleted() {
		return s.saga.CompleteSaga(w, now)
	}
	return nil
}

// handleFailure records the failure and routes it: forward recovery when
// the retry budget and the error kind allow it, otherwise saga failure with
// backward recovery when the error demands compensation.
func (s *Service) handleFailure(ctx context.Context, w *workflow.Workflow, stepID string, failure workflow.WorkflowError) error {
	now := failure.OccurredAt
	if now.IsZero() {
		now = s.clock.Now()
	}
	willRetry, err := w.HandleStepFailure(stepID, failure, now)
	if err != nil {
		return err
	}
	if willRetry {
		delay, retried, err := s.saga.ForwardRecovery(w, stepID, now)
		if err != nil {
			return err
		}
		if retried {
			w.UpdateContext("retryDelay_"+stepID, delay.String())
			if s.retries != nil {
				if err := s.retries.ScheduleRetry(ctx, w.ID, stepID, delay); err != nil {
					s.logger.Warn("retry scheduling failed, step stays pending",
						"workflow_id", w.ID,
						"step_id", stepID,
						"error", err,
					)
				}
			}
			return nil
		}
	}
	if err := s.saga.FailSaga(w, failure, now); err != nil {
		return err
	}
	return s.runCompensation(ctx, w)
}

// runCompensation undoes the executed steps in strict reverse order. A
// compensation whose budget exhausts is recorded and the walk continues
// with the next step; any recorded failure closes the saga as partially
// compensated and the remainder is reconciled out of band.
func (s *Service) runCompensation(ctx context.Context, w *workflow.Workflow) error {
	if w.Status != workflow.StatusCompensating {
		return nil
	}
	var exhausted []string
	for _, stepID := range w.StepsRequiringCompensation() {
		if err := w.CompensateStep(stepID, s.clock.Now()); err != nil {
			return err
		}
		step, _ := w.Step(stepID)
		if err := s.compensateCall(ctx, w, step); err != nil {
			if recErr := w.RecordCompensationFailure(stepID, err.Error(), s.clock.Now()); recErr != nil {
				return recErr
			}
			exhausted = append(exhausted, stepID)
			continue
		}
		if err := w.MarkStepCompensated(stepID, s.clock.Now()); err != nil {
			return err
		}
	}
	if len(exhausted) > 0 {
		return w.FailCompensation(
			fmt.Sprintf("compensation exhausted its budget for steps %s", strings.Join(exhausted, ", ")),
			s.clock.Now(),
		)
	}
	return w.CompleteCompensation(s.clock.Now())
}

// compensateCall invokes one compensation action with its own retry budget.
func (s *Service) compensateCall(ctx context.Context, w *workflow.Workflow, step *workflow.Step) error {
	action := step.Compensation
	req := map[string]any{
		"workflowId": w.ID,
		"stepId":     step.ID,
	}
	for k, v := range action.Parameters {
		req[k] = v
	}
	if step.Output != nil {
		req["stepOutput"] = step.Output
	}

	var lastErr error
	for attempt := 0; attempt <= action.MaxRetries; attempt++ {
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if action.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, action.Timeout)
		}
		_, lastErr = s.remote.Call(callCtx, action.ServiceName, action.Operation, req)
		cancel()
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("compensation call failed",
			"workflow_id", w.ID,
			"step_id", step.ID,
			"attempt", attempt+1,
			"error", lastErr,
		)
	}
	return lastErr
}

func (s *Service) stepRequest(w *workflow.Workflow, step *workflow.Step) map[string]any {
	req := map[string]any{
		"workflowId":    w.ID,
		"correlationId": w.CorrelationID,
	}
	for k, v := range w.Input {
		req[k] = v
	}
	for k, v := range step.Input {
		req[k] = v
	}
	return req
}

// mapRemoteError translates a transport error into the domain taxonomy.
// Errors already typed by the integration layer pass through.
func (s *Service) mapRemoteError(step *workflow.Step, err error, now time.Time) workflow.WorkflowError {
	var we workflow.WorkflowError
	if errors.As(err, &we) {
		if we.ServiceName == "" {
			we.ServiceName = step.ServiceName
		}
		if we.OccurredAt.IsZero() {
			we.OccurredAt = now
		}
		return we
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return workflow.TimeoutError(step.ID, step.ServiceName, now)
	}
	e := workflow.NewWorkflowError(workflow.ErrorInternal, "REMOTE_CALL_FAILED", err.Error(), now)
	e.ServiceName = step.ServiceName
	return e
}
