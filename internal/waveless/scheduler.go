package waveless

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paklog/orchestration/internal/event"
	"github.com/paklog/orchestration/internal/execution"
	"github.com/paklog/orchestration/internal/loadbalance"
	"github.com/paklog/orchestration/internal/repository"
	"github.com/paklog/orchestration/internal/workflow"
	"github.com/paklog/orchestration/pkg/metrics"
)

// EngineServiceID keys the engine's own load snapshot in the controller.
const EngineServiceID = "orchestration-engine"

// Engine is the slice of the execution service the scheduler drives.
type Engine interface {
	ProcessWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	PauseWorkflow(ctx context.Context, workflowID, reason string) (*workflow.Workflow, error)
	ResumeWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
}

// QueueMetrics summarizes the admission queue for operators.
type QueueMetrics struct {
	PendingTotal    int64                             `json:"pendingTotal"`
	ByPriority      map[workflow.WorkflowPriority]int `json:"byPriority"`
	ActiveTotal     int                               `json:"activeTotal"`
	AverageProgress float64                           `json:"averageProgress"`
}

// Scheduler is the waveless admission loop. Each tick it sizes a batch from
// the current system load, picks candidates by priority and age, and drives
// them through the engine. Overload pauses admission entirely.
type Scheduler struct {
	engine  Engine
	repo    repository.WorkflowRepository
	load    *loadbalance.Controller
	pub     event.Publisher
	clock   execution.Clock
	config  Config
	logger  *slog.Logger
	metrics *metrics.Registry
}

// NewScheduler wires the admission loop.
func NewScheduler(engine Engine, repo repository.WorkflowRepository, load *loadbalance.Controller, pub event.Publisher, clock execution.Clock, cfg Config, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = execution.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:  engine,
		repo:    repo,
		load:    load,
		pub:     pub,
		clock:   clock,
		config:  cfg,
		logger:  logger.With("component", "waveless_scheduler"),
		metrics: metrics.Global(),
	}
}

// Run drives the admission loop until the context is cancelled. The tick
// interval adapts to queue depth between iterations.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("waveless scheduler started",
		"default_batch_size", s.config.DefaultBatchSize,
		"base_tick", s.config.BaseTick,
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("waveless scheduler stopped")
			return ctx.Err()
		case <-time.After(s.nextTick(ctx)):
		}
		if err := s.ProcessOnce(ctx); err != nil {
			s.logger.Error("admission batch failed", "error", err)
		}
	}
}

// RunRebalancer periodically sheds or restores low-priority load until the
// context is cancelled.
func (s *Scheduler) RunRebalancer(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.RebalanceOnce(ctx); err != nil {
			s.logger.Error("rebalance failed", "error", err)
		}
	}
}

// RunLoadMonitor periodically samples aggregate workflow state into the
// load controller until the context is cancelled.
func (s *Scheduler) RunLoadMonitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.SampleOnce(ctx); err != nil {
			s.logger.Warn("load sample failed", "error", err)
		}
	}
}

// SampleOnce folds the active workflows' step utilization, the pending
// queue, and the failure ratio into one engine snapshot for the load
// controller.
func (s *Scheduler) SampleOnce(ctx context.Context) error {
	now := s.clock.Now()
	active, err := s.repo.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("list active workflows: %w", err)
	}
	pending, err := s.repo.CountByStatus(ctx, workflow.StatusPending)
	if err != nil {
		return fmt.Errorf("count pending workflows: %w", err)
	}
	failed, err := s.repo.CountByStatus(ctx, workflow.StatusFailed)
	if err != nil {
		return fmt.Errorf("count failed workflows: %w", err)
	}

	utilization := 0.0
	if len(active) > 0 {
		sum := 0.0
		for _, w := range active {
			sum += w.CalculateSystemLoad(now).Utilization
		}
		utilization = sum / float64(len(active))
	}
	errorRate := 0.0
	if total := int64(len(active)) + failed; total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	s.load.Monitor([]loadbalance.LoadSnapshot{
		loadbalance.EngineSnapshot(EngineServiceID, utilization, len(active), int(pending), errorRate, now),
	})
	return nil
}

// ProcessOnce admits one batch. Admission yields entirely while any target
// is critically overloaded.
func (s *Scheduler) ProcessOnce(ctx context.Context) error {
	systemLoad := s.load.SystemLoadScore()
	if s.load.ShouldPauseAdmission() {
		s.metrics.RecordAdmissionPaused()
		s.logger.Warn("admission paused, system overloaded", "system_load", systemLoad)
		return nil
	}

	batchSize := s.config.RecommendedBatchSize(systemLoad)
	candidates, err := s.repo.FindForWavelessProcessing(ctx, int64(s.config.MaxBatchSize))
	if err != nil {
		return fmt.Errorf("list admission candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	SortBatch(candidates)
	now := s.clock.Now()
	selected := make([]*workflow.Workflow, 0, batchSize)
	for i, cand := range candidates {
		if i < batchSize || s.config.ShouldProcessImmediately(cand, now) {
			selected = append(selected, cand)
		}
	}

	admitted := 0
	for _, cand := range selected {
		if _, err := s.engine.ProcessWorkflow(ctx, cand.ID); err != nil {
			if errors.Is(err, execution.ErrWorkflowBusy) {
				s.logger.Debug("workflow busy, skipping", "workflow_id", cand.ID)
				continue
			}
			s.logger.Error("workflow admission failed", "workflow_id", cand.ID, "error", err)
			continue
		}
		admitted++
	}
	s.metrics.RecordSchedulerBatch(len(selected), admitted)
	s.logger.Info("admission batch processed",
		"batch_size", len(selected),
		"admitted", admitted,
		"system_load", systemLoad,
	)
	return nil
}

// RebalanceOnce sheds low-priority executing workflows when the system runs
// hot and resumes them when it cools down, then publishes the rebalance
// events computed by the load controller.
func (s *Scheduler) RebalanceOnce(ctx context.Context) error {
	score := s.load.SystemLoadScore()
	now := s.clock.Now()

	switch {
	case score >= s.config.PauseUtilization:
		executing, err := s.repo.FindByStatus(ctx, workflow.StatusExecuting, 0)
		if err != nil {
			return fmt.Errorf("list executing workflows: %w", err)
		}
		for _, w := range executing {
			if w.Priority != workflow.PriorityLow {
				continue
			}
			if _, err := s.engine.PauseWorkflow(ctx, w.ID, "system load shedding"); err != nil {
				s.logger.Warn("load-shedding pause failed", "workflow_id", w.ID, "error", err)
			}
		}
	case score <= s.config.ResumeUtilization:
		paused, err := s.repo.FindByStatus(ctx, workflow.StatusPaused, 0)
		if err != nil {
			return fmt.Errorf("list paused workflows: %w", err)
		}
		for _, w := range paused {
			if w.Priority != workflow.PriorityLow {
				continue
			}
			if _, err := s.engine.ResumeWorkflow(ctx, w.ID); err != nil {
				s.logger.Warn("load-shedding resume failed", "workflow_id", w.ID, "error", err)
			}
		}
	}

	rebalances := s.load.RebalanceEvents(now)
	if len(rebalances) == 0 {
		return nil
	}
	events := make([]workflow.DomainEvent, len(rebalances))
	for i, e := range rebalances {
		events[i] = e
	}
	return s.pub.PublishAll(ctx, events)
}

// QueueMetrics summarizes the admission queue.
func (s *Scheduler) QueueMetrics(ctx context.Context) (QueueMetrics, error) {
	pending, err := s.repo.CountByStatus(ctx, workflow.StatusPending)
	if err != nil {
		return QueueMetrics{}, fmt.Errorf("count pending workflows: %w", err)
	}
	candidates, err := s.repo.FindForWavelessProcessing(ctx, 0)
	if err != nil {
		return QueueMetrics{}, fmt.Errorf("list admission candidates: %w", err)
	}
	active, err := s.repo.FindActive(ctx)
	if err != nil {
		return QueueMetrics{}, fmt.Errorf("list active workflows: %w", err)
	}

	m := QueueMetrics{
		PendingTotal: pending,
		ByPriority:   make(map[workflow.WorkflowPriority]int),
		ActiveTotal:  len(active),
	}
	for _, w := range candidates {
		m.ByPriority[w.Priority]++
	}
	if len(active) > 0 {
		sum := 0.0
		for _, w := range active {
			sum += w.ProgressPercent()
		}
		m.AverageProgress = sum / float64(len(active))
	}
	return m, nil
}

func (s *Scheduler) nextTick(ctx context.Context) time.Duration {
	depth, err := s.repo.CountByStatus(ctx, workflow.StatusPending)
	if err != nil {
		s.logger.Warn("queue depth unavailable", "error", err)
		return s.config.BaseTick
	}
	s.metrics.SetSchedulerQueueDepth(float64(depth))
	return s.config.TickInterval(int(depth))
}
