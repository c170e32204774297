// Package loadbalance tracks per-target load and picks targets for new
// work. Snapshots are process-local; history survives neither restarts nor
// the configured ring size.
package loadbalance

import "time"

// Score weights. The blend favors compute saturation but keeps queue depth
// and error rate visible.
const (
	weightCPU    = 0.3
	weightMemory = 0.3
	weightQueue  = 0.2
	weightErrors = 0.2

	queueNormalization = 1000.0
)

// LoadSnapshot is one observation of a target service.
type LoadSnapshot struct {
	ServiceID         string    `json:"serviceId"`
	CPUPercent        float64   `json:"cpuPercent"`
	MemoryPercent     float64   `json:"memoryPercent"`
	ActiveRequests    int       `json:"activeRequests"`
	QueueDepth        int       `json:"queueDepth"`
	AvgResponseTimeMs float64   `json:"avgResponseTimeMs"`
	ErrorRate         float64   `json:"errorRate"`
	Timestamp         time.Time `json:"timestamp"`
}

// EngineSnapshot derives a load observation for the engine itself from
// aggregate workflow state: average step utilization stands in for
// compute saturation, the pending queue for queue depth.
func EngineSnapshot(serviceID string, utilization float64, activeWorkflows, queueDepth int, errorRate float64, now time.Time) LoadSnapshot {
	return LoadSnapshot{
		ServiceID:      serviceID,
		CPUPercent:     utilization,
		MemoryPercent:  utilization,
		ActiveRequests: activeWorkflows,
		QueueDepth:     queueDepth,
		ErrorRate:      errorRate,
		Timestamp:      now,
	}
}

// Score returns the weighted load score, 0-100.
func (s LoadSnapshot) Score() float64 {
	queueScore := float64(s.QueueDepth) / queueNormalization * 100
	if queueScore > 100 {
		queueScore = 100
	}
	errorScore := s.ErrorRate * 100
	return s.CPUPercent*weightCPU + s.MemoryPercent*weightMemory + queueScore*weightQueue + errorScore*weightErrors
}

// IsOverloaded reports whether the score reached the critical threshold.
func (s LoadSnapshot) IsOverloaded(critical float64) bool {
	return s.Score() >= critical
}

// NeedsRebalance reports whether this target should shed load.
func (s LoadSnapshot) NeedsRebalance(target, maxErrorRate float64) bool {
	return s.Score() >= target || s.ErrorRate > maxErrorRate
}

// CanAcceptWork reports whether new work may be routed here.
func (s LoadSnapshot) CanAcceptWork(target float64) bool {
	return s.Score() < target && s.ErrorRate < 0.3
}
