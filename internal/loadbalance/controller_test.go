package loadbalance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(id string, cpu, mem float64, queue int, errorRate float64) LoadSnapshot {
	return LoadSnapshot{
		ServiceID:     id,
		CPUPercent:    cpu,
		MemoryPercent: mem,
		QueueDepth:    queue,
		ErrorRate:     errorRate,
		Timestamp:     testTime,
	}
}

func TestLoadScore(t *testing.T) {
	tests := []struct {
		name string
		s    LoadSnapshot
		want float64
	}{
		{"idle", snap("a", 0, 0, 0, 0), 0},
		{"balanced", snap("a", 50, 50, 500, 0.1), 50*0.3 + 50*0.3 + 50*0.2 + 10*0.2},
		{"queue capped", snap("a", 0, 0, 5000, 0), 100 * 0.2},
		{"saturated", snap("a", 100, 100, 1000, 1), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.s.Score(), 0.0001)
		})
	}
}

func TestSnapshotDerivedFlags(t *testing.T) {
	cfg := DefaultConfig()

	hot := snap("a", 100, 100, 1000, 0.8)
	assert.True(t, hot.IsOverloaded(cfg.CriticalUtilization))
	assert.True(t, hot.NeedsRebalance(cfg.TargetUtilization, cfg.MaxErrorRate))
	assert.False(t, hot.CanAcceptWork(cfg.TargetUtilization))

	flaky := snap("b", 10, 10, 0, 0.6)
	assert.False(t, flaky.IsOverloaded(cfg.CriticalUtilization))
	assert.True(t, flaky.NeedsRebalance(cfg.TargetUtilization, cfg.MaxErrorRate), "high error rate forces rebalance")
	assert.False(t, flaky.CanAcceptWork(cfg.TargetUtilization), "error rate above 0.3 refuses work")

	idle := snap("c", 20, 20, 10, 0.01)
	assert.True(t, idle.CanAcceptWork(cfg.TargetUtilization))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.CriticalUtilization = 50
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxErrorRate = 0
	assert.Error(t, bad.Validate())
}

func TestSelectTarget(t *testing.T) {
	c := NewController(DefaultConfig(), nil)

	_, ok := c.SelectTarget()
	assert.False(t, ok, "no snapshots, no target")

	c.Monitor([]LoadSnapshot{
		snap("busy", 90, 90, 800, 0.1),
		snap("calm", 20, 25, 50, 0.05),
		snap("medium", 50, 50, 200, 0.1),
	})

	id, ok := c.SelectTarget()
	require.True(t, ok)
	assert.Equal(t, "calm", id)
}

func TestSelectTargetAllSaturated(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	c.Monitor([]LoadSnapshot{
		snap("a", 100, 100, 1000, 0.4),
		snap("b", 40, 40, 100, 0.6),
	})

	_, ok := c.SelectTarget()
	assert.False(t, ok, "every target over target score or over error rate yields empty")
}

func TestNeedsRebalance(t *testing.T) {
	t.Run("overloaded target", func(t *testing.T) {
		c := NewController(DefaultConfig(), nil)
		c.Monitor([]LoadSnapshot{snap("a", 100, 100, 1000, 0.9)})
		assert.True(t, c.NeedsRebalance())
	})

	t.Run("wide spread", func(t *testing.T) {
		c := NewController(DefaultConfig(), nil)
		c.Monitor([]LoadSnapshot{
			snap("a", 80, 80, 0, 0),
			snap("b", 10, 10, 0, 0),
		})
		assert.True(t, c.NeedsRebalance(), "spread over 30 points triggers rebalance")
	})

	t.Run("balanced", func(t *testing.T) {
		c := NewController(DefaultConfig(), nil)
		c.Monitor([]LoadSnapshot{
			snap("a", 50, 50, 0, 0),
			snap("b", 40, 40, 0, 0),
		})
		assert.False(t, c.NeedsRebalance())
	})
}

func TestStrategy(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(cfg, nil)
	c.Monitor([]LoadSnapshot{
		snap("critical", 100, 100, 1000, 0.9), // score 98
		snap("hot", 100, 100, 1000, 0.5),      // score 90
		snap("cold", 20, 20, 0, 0),            // score 12
		snap("steady", 70, 70, 300, 0.1),      // score 50, comfortable band
	})

	strategy := c.Strategy()
	assert.InDelta(t, 0.8*cfg.TargetUtilization, strategy["critical"], 0.001)
	assert.InDelta(t, cfg.TargetUtilization, strategy["hot"], 0.001)
	assert.InDelta(t, 0.7*cfg.TargetUtilization, strategy["cold"], 0.001)

	steady, _ := c.Snapshot("steady")
	assert.InDelta(t, steady.Score(), strategy["steady"], 0.001, "comfortable targets keep their load")
}

func TestCircuitBreakerTrip(t *testing.T) {
	c := NewController(DefaultConfig(), nil)

	failing := snap("a", 50, 50, 0, 0.6)
	failing.ActiveRequests = 12
	assert.True(t, c.ShouldTripCircuitBreaker(failing))

	quiet := snap("b", 50, 50, 0, 0.9)
	quiet.ActiveRequests = 3
	assert.False(t, c.ShouldTripCircuitBreaker(quiet), "too few in-flight requests to judge")

	healthy := snap("c", 50, 50, 0, 0.1)
	healthy.ActiveRequests = 50
	assert.False(t, c.ShouldTripCircuitBreaker(healthy))
}

func TestHealthStatus(t *testing.T) {
	c := NewController(DefaultConfig(), nil)

	assert.Equal(t, HealthHealthy, c.HealthStatus(snap("a", 30, 30, 10, 0.01)))
	assert.Equal(t, HealthDegraded, c.HealthStatus(snap("b", 30, 30, 10, 0.7)))
	assert.Equal(t, HealthCritical, c.HealthStatus(snap("c", 100, 100, 1000, 0.9)))
	assert.Equal(t, HealthWarning, c.HealthStatus(snap("d", 100, 100, 1000, 0.45)))
}

func TestHistoryRingAndTrend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 10
	c := NewController(cfg, nil)

	for i := 0; i < 25; i++ {
		load := float64(i * 4)
		if load > 100 {
			load = 100
		}
		c.Monitor([]LoadSnapshot{snap("a", load, load, 0, 0)})
	}

	assert.True(t, c.IsLoadIncreasing("a"))
	assert.Greater(t, c.AverageLoad("a"), 0.0)

	c2 := NewController(cfg, nil)
	c2.Monitor([]LoadSnapshot{snap("b", 50, 50, 0, 0)})
	assert.False(t, c2.IsLoadIncreasing("b"), "not enough history for a trend")
}

func TestShouldPauseAdmission(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	c.Monitor([]LoadSnapshot{snap("a", 40, 40, 10, 0.05)})
	assert.False(t, c.ShouldPauseAdmission())

	c.Monitor([]LoadSnapshot{snap("b", 100, 100, 1000, 0.9)})
	assert.True(t, c.ShouldPauseAdmission())
}

func TestRebalanceEvents(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	c.Monitor([]LoadSnapshot{
		snap("critical", 100, 100, 1000, 0.4),
		snap("cold", 20, 20, 0, 0),
	})

	events := c.RebalanceEvents(testTime)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.NotEmpty(t, e.EventID())
		assert.NotEqual(t, e.PreviousLoad, e.CurrentLoad)
		assert.Len(t, e.ServiceLoads, 2)
	}
}
