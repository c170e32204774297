package health

import (
	"context"
	"sync"
	"time"
)

const checkTimeout = 5 * time.Second

// Registry holds the registered checkers and runs them on demand.
type Registry struct {
	checkers  []Checker
	startTime time.Time
	version   string
	mu        sync.RWMutex
}

// NewRegistry creates a registry stamped with the build version.
func NewRegistry(version string) *Registry {
	return &Registry{
		startTime: time.Now(),
		version:   version,
	}
}

// Register adds a checker.
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checker)
}

// Checkers returns a copy of the registered checkers.
func (r *Registry) Checkers() []Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Checker, len(r.checkers))
	copy(out, r.checkers)
	return out
}

// Liveness answers without touching dependencies. It only fails when
// the process itself is broken.
func (r *Registry) Liveness(_ context.Context) Response {
	return Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   r.version,
		Uptime:    time.Since(r.startTime).String(),
	}
}

// Readiness runs the critical checks only.
func (r *Registry) Readiness(ctx context.Context) Response {
	return r.runChecks(ctx, true)
}

// Health runs every registered check.
func (r *Registry) Health(ctx context.Context) Response {
	return r.runChecks(ctx, false)
}

func (r *Registry) runChecks(ctx context.Context, criticalOnly bool) Response {
	checkers := r.Checkers()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make(map[string]CheckResult)
	overall := StatusHealthy

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checker := range checkers {
		if criticalOnly && checker.Severity() != SeverityCritical {
			continue
		}

		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			start := time.Now()
			result := c.Check(ctx)
			result.Duration = time.Since(start)

			mu.Lock()
			defer mu.Unlock()

			checks[c.Name()] = result

			switch {
			case result.Status == StatusUnhealthy && c.Severity() == SeverityCritical:
				overall = StatusUnhealthy
			case result.Status != StatusHealthy && overall == StatusHealthy:
				overall = StatusDegraded
			}
		}(checker)
	}

	wg.Wait()

	return Response{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   r.version,
		Uptime:    time.Since(r.startTime).String(),
		Checks:    checks,
	}
}

// StartTime returns when the registry was created.
func (r *Registry) StartTime() time.Time {
	return r.startTime
}

// Version returns the build version.
func (r *Registry) Version() string {
	return r.version
}
