package cache

import (
	"context"
	"errors"
	"time"

	"github.com/paklog/orchestration/internal/workflow"
)

const workflowKeyPrefix = "workflow:"

// WorkflowCache is a read-through cache for workflow snapshots. The
// repository stays the source of truth; a miss or a cache failure falls
// back to the database.
type WorkflowCache struct {
	cache Cache
	ttl   time.Duration
}

// NewWorkflowCache wraps a cache backend for workflow snapshots.
func NewWorkflowCache(cache Cache, ttl time.Duration) *WorkflowCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &WorkflowCache{cache: cache, ttl: ttl}
}

// Get returns the cached snapshot for a workflow, or ErrCacheMiss.
func (w *WorkflowCache) Get(ctx context.Context, workflowID string) (*workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := w.cache.GetJSON(ctx, workflowKeyPrefix+workflowID, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Put stores a snapshot. A newer version already in the cache wins.
func (w *WorkflowCache) Put(ctx context.Context, snap *workflow.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("snapshot has no workflow id")
	}

	if cached, err := w.Get(ctx, snap.ID); err == nil && cached.Version > snap.Version {
		return nil
	}
	return w.cache.SetJSON(ctx, workflowKeyPrefix+snap.ID, snap, w.ttl)
}

// Invalidate drops the cached snapshot for one workflow.
func (w *WorkflowCache) Invalidate(ctx context.Context, workflowID string) error {
	return w.cache.Delete(ctx, workflowKeyPrefix+workflowID)
}

// InvalidateAll drops every cached workflow snapshot.
func (w *WorkflowCache) InvalidateAll(ctx context.Context) error {
	return w.cache.DeletePattern(ctx, workflowKeyPrefix+"*")
}
