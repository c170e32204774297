package loadbalance

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/paklog/orchestration/internal/workflow"
)

// HealthStatus classifies a target for operators.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthWarning  HealthStatus = "WARNING"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthCritical HealthStatus = "CRITICAL"
)

// Config bounds the controller's decisions. Defaults come from the
// immutable process configuration; there is no global mutable state.
type Config struct {
	// TargetUtilization is the load score above which a target sheds
	// work.
	TargetUtilization float64
	// CriticalUtilization is the load score at which a target is
	// overloaded.
	CriticalUtilization float64
	// MaxErrorRate is the error rate above which a target is degraded.
	MaxErrorRate float64
	// MaxImbalance is the allowed spread between the most and least
	// loaded targets before a rebalance.
	MaxImbalance float64
	// HistorySize bounds the per-target snapshot ring.
	HistorySize int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TargetUtilization:   85,
		CriticalUtilization: 95,
		MaxErrorRate:        0.5,
		MaxImbalance:        30,
		HistorySize:         100,
	}
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.TargetUtilization <= 0 || c.TargetUtilization > 100 {
		return fmt.Errorf("target utilization %v out of range", c.TargetUtilization)
	}
	if c.CriticalUtilization <= c.TargetUtilization {
		return fmt.Errorf("critical utilization %v must exceed target %v", c.CriticalUtilization, c.TargetUtilization)
	}
	if c.MaxErrorRate <= 0 || c.MaxErrorRate > 1 {
		return fmt.Errorf("max error rate %v out of range", c.MaxErrorRate)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size %d must be positive", c.HistorySize)
	}
	return nil
}

// Controller aggregates per-target load snapshots and drives admission
// decisions. The snapshot map is written by the monitor loop and read by
// the selector; a mutex guards both.
type Controller struct {
	mu        sync.RWMutex
	config    Config
	logger    *slog.Logger
	snapshots map[string]LoadSnapshot
	history   map[string][]LoadSnapshot
}

// NewController creates a controller with the given thresholds.
func NewController(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		config:    cfg,
		logger:    logger.With("component", "load_controller"),
		snapshots: make(map[string]LoadSnapshot),
		history:   make(map[string][]LoadSnapshot),
	}
}

// Monitor records a batch of fresh snapshots.
func (c *Controller) Monitor(snapshots []LoadSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, snap := range snapshots {
		c.snapshots[snap.ServiceID] = snap
		ring := append(c.history[snap.ServiceID], snap)
		if len(ring) > c.config.HistorySize {
			ring = ring[len(ring)-c.config.HistorySize:]
		}
		c.history[snap.ServiceID] = ring
	}
}

// Snapshot returns the latest observation of one target.
func (c *Controller) Snapshot(serviceID string) (LoadSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[serviceID]
	return snap, ok
}

// Snapshots returns a copy of the latest observation per target.
func (c *Controller) Snapshots() map[string]LoadSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]LoadSnapshot, len(c.snapshots))
	for k, v := range c.snapshots {
		out[k] = v
	}
	return out
}

// NeedsRebalance reports whether any target is overloaded or the spread
// between the most and least loaded targets exceeds the allowed imbalance.
func (c *Controller) NeedsRebalance() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.snapshots) == 0 {
		return false
	}
	minScore, maxScore := 101.0, -1.0
	for _, snap := range c.snapshots {
		if snap.IsOverloaded(c.config.CriticalUtilization) {
			return true
		}
		score := snap.Score()
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}
	return maxScore-minScore > c.config.MaxImbalance
}

// Strategy computes the per-target load the scheduler should steer toward.
// Overloaded targets get pushed well below target, loaded ones to target,
// and underused ones pulled up toward it.
func (c *Controller) Strategy() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(c.snapshots))
	for id, snap := range c.snapshots {
		score := snap.Score()
		switch {
		case score > c.config.CriticalUtilization:
			out[id] = 0.8 * c.config.TargetUtilization
		case score > c.config.TargetUtilization:
			out[id] = c.config.TargetUtilization
		case score < 0.5*c.config.TargetUtilization:
			out[id] = 0.7 * c.config.TargetUtilization
		default:
			out[id] = score
		}
	}
	return out
}

// SelectTarget returns the least loaded target that can accept work. The
// empty result means every target is saturated and the scheduler yields.
func (c *Controller) SelectTarget() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := ""
	bestScore := 101.0
	ids := make([]string, 0, len(c.snapshots))
	for id := range c.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap := c.snapshots[id]
		if !snap.CanAcceptWork(c.config.TargetUtilization) || snap.ErrorRate >= c.config.MaxErrorRate {
			continue
		}
		if score := snap.Score(); score < bestScore {
			best, bestScore = id, score
		}
	}
	return best, best != ""
}

// ShouldTripCircuitBreaker reports whether a target is failing under
// enough concurrent load to stop calling it.
func (c *Controller) ShouldTripCircuitBreaker(snap LoadSnapshot) bool {
	return snap.ActiveRequests >= 10 && snap.ErrorRate >= c.config.MaxErrorRate
}

// HealthStatus classifies one target.
func (c *Controller) HealthStatus(snap LoadSnapshot) HealthStatus {
	score := snap.Score()
	switch {
	case score >= c.config.CriticalUtilization:
		return HealthCritical
	case snap.ErrorRate > c.config.MaxErrorRate:
		return HealthDegraded
	case score < c.config.TargetUtilization:
		return HealthHealthy
	default:
		return HealthWarning
	}
}

// SystemLoadScore returns the average score over all targets, the number
// the waveless scheduler sizes its batches from.
func (c *Controller) SystemLoadScore() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.snapshots) == 0 {
		return 0
	}
	sum := 0.0
	for _, snap := range c.snapshots {
		sum += snap.Score()
	}
	return sum / float64(len(c.snapshots))
}

// ShouldPauseAdmission reports whether waveless admission must yield: any
// target critically overloaded or failing more than half its calls.
func (c *Controller) ShouldPauseAdmission() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, snap := range c.snapshots {
		if snap.IsOverloaded(c.config.CriticalUtilization) || snap.ErrorRate >= c.config.MaxErrorRate {
			return true
		}
	}
	return false
}

// AverageLoad returns the mean score of a target's recorded history.
func (c *Controller) AverageLoad(serviceID string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ring := c.history[serviceID]
	if len(ring) == 0 {
		return 0
	}
	sum := 0.0
	for _, snap := range ring {
		sum += snap.Score()
	}
	return sum / float64(len(ring))
}

// IsLoadIncreasing reports whether the latest score is more than 10% above
// the score five observations back.
func (c *Controller) IsLoadIncreasing(serviceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ring := c.history[serviceID]
	if len(ring) < 5 {
		return false
	}
	old := ring[len(ring)-5].Score()
	latest := ring[len(ring)-1].Score()
	if old <= 0 {
		return latest > 0
	}
	return latest > old*1.1
}

// RebalanceEvents compares the current scores against the strategy and
// produces one SystemLoadRebalanced event per target whose admission
// target shifts.
func (c *Controller) RebalanceEvents(now time.Time) []workflow.SystemLoadRebalanced {
	strategy := c.Strategy()
	loads := make(map[string]float64, len(strategy))

	c.mu.RLock()
	snaps := make(map[string]LoadSnapshot, len(c.snapshots))
	for id, snap := range c.snapshots {
		snaps[id] = snap
		loads[id] = snap.Score()
	}
	c.mu.RUnlock()

	var events []workflow.SystemLoadRebalanced
	ids := make([]string, 0, len(strategy))
	for id := range strategy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		current := snaps[id].Score()
		target := strategy[id]
		if current == target {
			continue
		}
		reason := "steering toward target utilization"
		if current > c.config.CriticalUtilization {
			reason = "critical overload"
		}
		events = append(events, workflow.NewSystemLoadRebalanced(id, current, target, loads, reason, now))
	}
	if len(events) > 0 {
		c.logger.Info("rebalance computed", "targets", len(events))
	}
	return events
}
