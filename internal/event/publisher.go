// Package event delivers workflow domain events to in-process subscribers.
// Delivery is at-least-once and happens only after the workflow's persisted
// write commits; the workflow's event queue is the outbox.
package event

import (
	"context"

	"github.com/paklog/orchestration/internal/workflow"
)

// Publisher is the port the execution service publishes through.
type Publisher interface {
	Publish(ctx context.Context, e workflow.DomainEvent) error
	// PublishAll publishes in slice order; per-workflow ordering depends
	// on it.
	PublishAll(ctx context.Context, events []workflow.DomainEvent) error
}

// DrainOutbox publishes the workflow's queued events in emission order and
// clears the queue. Callers invoke it only after a successful save; on a
// publish error the queue is left intact for redelivery.
func DrainOutbox(ctx context.Context, pub Publisher, w *workflow.Workflow) error {
	events := w.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := pub.PublishAll(ctx, events); err != nil {
		return err
	}
	w.ClearDomainEvents()
	return nil
}
