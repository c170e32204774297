// Package repository persists workflow aggregates. The persisted document
// model is kept apart from the behavioral aggregate; mappers convert at the
// boundary.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/paklog/orchestration/internal/workflow"
)

// Repository errors.
var (
	// ErrNotFound is returned when no workflow matches the given id.
	ErrNotFound = errors.New("workflow not found")

	// ErrVersionConflict is returned when an optimistic save observes a
	// stale version. The caller reloads, re-applies, and saves again.
	ErrVersionConflict = errors.New("workflow version conflict")

	// ErrDuplicateKey is returned when inserting a workflow whose id
	// already exists.
	ErrDuplicateKey = errors.New("workflow id already exists")
)

// WorkflowRepository is the persistence port of the engine. Save commits
// the aggregate with an optimistic version check and increments the
// version; everything else is a read or an idempotent admin path.
type WorkflowRepository interface {
	// Save persists the workflow. New workflows (version 0) are
	// inserted; existing ones are replaced iff the stored version still
	// matches. On success the aggregate's version reflects the stored
	// one.
	Save(ctx context.Context, w *workflow.Workflow) error

	FindByID(ctx context.Context, id string) (*workflow.Workflow, error)
	FindByStatus(ctx context.Context, status workflow.WorkflowStatus, limit int64) ([]*workflow.Workflow, error)
	FindByType(ctx context.Context, t workflow.WorkflowType, limit int64) ([]*workflow.Workflow, error)
	FindByCorrelationID(ctx context.Context, correlationID string) ([]*workflow.Workflow, error)

	// FindActive returns workflows in EXECUTING, PAUSED, or COMPENSATING.
	FindActive(ctx context.Context) ([]*workflow.Workflow, error)
	// FindPending returns up to limit PENDING workflows, oldest first.
	FindPending(ctx context.Context, limit int64) ([]*workflow.Workflow, error)
	// FindForRetry returns FAILED workflows with retry budget left.
	FindForRetry(ctx context.Context, limit int64) ([]*workflow.Workflow, error)
	// FindForWavelessProcessing returns admission candidates: PENDING,
	// and either HIGH priority or of a type that supports waveless.
	FindForWavelessProcessing(ctx context.Context, limit int64) ([]*workflow.Workflow, error)
	FindByCreatedAtBetween(ctx context.Context, from, to time.Time) ([]*workflow.Workflow, error)

	CountByStatus(ctx context.Context, status workflow.WorkflowStatus) (int64, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	DeleteByID(ctx context.Context, id string) error

	// UpdateStatus sets the status directly, bypassing the aggregate.
	// Admin path only; idempotent.
	UpdateStatus(ctx context.Context, id string, status workflow.WorkflowStatus) error
}
