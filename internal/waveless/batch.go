// Package waveless admits pending workflows continuously in small batches
// sized by system load, replacing fixed wave schedules. High-priority and
// aged workflows bypass the batch limit.
package waveless

import (
	"fmt"
	"sort"
	"time"

	"github.com/paklog/orchestration/internal/workflow"
)

// Load bands for batch sizing.
const (
	criticalLoad = 95.0
	highLoad     = 85.0
	lowLoad      = 50.0
)

// Queue-depth bands for the tick interval.
const (
	busyQueueDepth = 100
	highQueueDepth = 50
	idleQueueDepth = 10
)

// Config bounds the scheduler's admission behavior.
type Config struct {
	// DefaultBatchSize is the admission batch size under nominal load.
	DefaultBatchSize int
	// MaxBatchSize caps the batch even when the system is idle.
	MaxBatchSize int
	// BaseTick is the loop interval under nominal queue depth.
	BaseTick time.Duration
	// BusyTick is the loop interval when the queue is deep.
	BusyTick time.Duration
	// IdleTick is the loop interval when the queue is nearly empty.
	IdleTick time.Duration
	// ImmediateAge is the waiting time after which a workflow bypasses
	// the batch limit regardless of priority.
	ImmediateAge time.Duration
	// SampleInterval is the cadence at which aggregate workflow state is
	// sampled into the load controller.
	SampleInterval time.Duration
	// PauseUtilization is the system load at which low-priority work is
	// paused.
	PauseUtilization float64
	// ResumeUtilization is the system load below which paused
	// low-priority work resumes.
	ResumeUtilization float64
}

// DefaultConfig returns the standard admission bounds.
func DefaultConfig() Config {
	return Config{
		DefaultBatchSize:  10,
		MaxBatchSize:      50,
		BaseTick:          time.Second,
		BusyTick:          500 * time.Millisecond,
		IdleTick:          2 * time.Second,
		ImmediateAge:      60 * time.Second,
		SampleInterval:    10 * time.Second,
		PauseUtilization:  85,
		ResumeUtilization: 70,
	}
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.DefaultBatchSize <= 0 {
		return fmt.Errorf("default batch size %d must be positive", c.DefaultBatchSize)
	}
	if c.MaxBatchSize < c.DefaultBatchSize {
		return fmt.Errorf("max batch size %d below default %d", c.MaxBatchSize, c.DefaultBatchSize)
	}
	if c.BaseTick <= 0 || c.BusyTick <= 0 || c.IdleTick <= 0 {
		return fmt.Errorf("tick intervals must be positive")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if c.ResumeUtilization >= c.PauseUtilization {
		return fmt.Errorf("resume utilization %v must be below pause utilization %v", c.ResumeUtilization, c.PauseUtilization)
	}
	return nil
}

// RecommendedBatchSize sizes the next admission batch from the system load
// score: quartered when critical, halved when hot, doubled when idle.
func (c Config) RecommendedBatchSize(loadScore float64) int {
	size := c.DefaultBatchSize
	switch {
	case loadScore >= criticalLoad:
		size = c.DefaultBatchSize / 4
	case loadScore >= highLoad:
		size = c.DefaultBatchSize / 2
	case loadScore < lowLoad:
		size = c.DefaultBatchSize * 2
	}
	if size < 1 {
		size = 1
	}
	if size > c.MaxBatchSize {
		size = c.MaxBatchSize
	}
	return size
}

// TickInterval adapts the loop cadence to queue depth: faster when backed
// up, slower when drained.
func (c Config) TickInterval(queueDepth int) time.Duration {
	switch {
	case queueDepth > busyQueueDepth:
		return c.BusyTick
	case queueDepth > highQueueDepth:
		return c.BaseTick
	case queueDepth < idleQueueDepth:
		return c.IdleTick
	default:
		return c.BaseTick
	}
}

// ShouldProcessImmediately reports whether a workflow bypasses the batch
// limit: HIGH priority, or waiting longer than the immediate age.
func (c Config) ShouldProcessImmediately(w *workflow.Workflow, now time.Time) bool {
	if w.Priority == workflow.PriorityHigh {
		return true
	}
	return now.Sub(w.CreatedAt) > c.ImmediateAge
}

// SortBatch orders candidates by priority, oldest first within a priority.
// The sort is stable so equal workflows keep their repository order.
func SortBatch(ws []*workflow.Workflow) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Priority.Level() != ws[j].Priority.Level() {
			return ws[i].Priority.Level() < ws[j].Priority.Level()
		}
		return ws[i].CreatedAt.Before(ws[j].CreatedAt)
	})
}
