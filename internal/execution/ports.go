package execution

import (
	"context"
	"time"
)

// Clock abstracts wall time so recovery timing is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RemoteCall invokes an operation on a downstream warehouse service. The
// request and response are free-form JSON objects; transport failures come
// back as errors the service maps onto the domain error taxonomy.
type RemoteCall interface {
	Call(ctx context.Context, serviceName, operation string, request map[string]any) (map[string]any, error)
}

// RetryScheduler re-admits a failed step after its backoff delay. The
// delayed-task queue implements it; a nil scheduler means the caller polls.
type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, workflowID, stepID string, delay time.Duration) error
}
