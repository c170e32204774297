package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paklog/orchestration/internal/workflow"
)

// CollectionWorkflows is the collection workflow documents live in.
const CollectionWorkflows = "workflow_instances"

var activeStatuses = []string{
	string(workflow.StatusExecuting),
	string(workflow.StatusPaused),
	string(workflow.StatusCompensating),
}

// MongoRepository implements WorkflowRepository on a MongoDB collection.
// Optimistic concurrency is enforced with a replace filtered on
// {_id, version}; a miss distinguishes "gone" from "stale".
type MongoRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoRepository creates a repository over the given database.
func NewMongoRepository(db *mongo.Database, logger *slog.Logger) *MongoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoRepository{
		collection: db.Collection(CollectionWorkflows),
		logger:     logger.With("component", "workflow_repository"),
	}
}

// EnsureIndexes creates the query indexes. Safe to call on every start.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "correlationId", Value: 1}}},
		{Keys: bson.D{{Key: "startedAt", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("creating workflow indexes: %w", err)
	}
	return nil
}

// Save persists the aggregate and publishes nothing: the caller drains the
// outbox only after Save returns nil.
func (r *MongoRepository) Save(ctx context.Context, w *workflow.Workflow) error {
	snap := w.Snapshot()
	doc := toDocument(snap)
	next := snap.Version + 1
	doc.Version = next

	if snap.Version == 0 {
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("workflow %s: %w", snap.ID, ErrDuplicateKey)
			}
			return fmt.Errorf("inserting workflow %s: %w", snap.ID, err)
		}
		w.SetVersion(next)
		return nil
	}

	filter := bson.M{"_id": snap.ID, "version": snap.Version}
	err := r.collection.FindOneAndReplace(ctx, filter, doc).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			exists, existsErr := r.ExistsByID(ctx, snap.ID)
			if existsErr != nil {
				return existsErr
			}
			if !exists {
				return fmt.Errorf("workflow %s: %w", snap.ID, ErrNotFound)
			}
			return fmt.Errorf("workflow %s at version %d: %w", snap.ID, snap.Version, ErrVersionConflict)
		}
		return fmt.Errorf("saving workflow %s: %w", snap.ID, err)
	}
	w.SetVersion(next)
	return nil
}

// FindByID loads one workflow.
func (r *MongoRepository) FindByID(ctx context.Context, id string) (*workflow.Workflow, error) {
	var doc workflowDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("finding workflow %s: %w", id, err)
	}
	return workflow.FromSnapshot(doc.toSnapshot()), nil
}

// FindByStatus returns workflows in the given status, oldest first.
func (r *MongoRepository) FindByStatus(ctx context.Context, status workflow.WorkflowStatus, limit int64) ([]*workflow.Workflow, error) {
	return r.find(ctx, bson.M{"status": string(status)}, limit)
}

// FindByType returns workflows of the given type, oldest first.
func (r *MongoRepository) FindByType(ctx context.Context, t workflow.WorkflowType, limit int64) ([]*workflow.Workflow, error) {
	return r.find(ctx, bson.M{"type": string(t)}, limit)
}

// FindByCorrelationID returns all workflows sharing a correlation id.
func (r *MongoRepository) FindByCorrelationID(ctx context.Context, correlationID string) ([]*workflow.Workflow, error) {
	return r.find(ctx, bson.M{"correlationId": correlationID}, 0)
}

// FindActive returns workflows still in flight.
func (r *MongoRepository) FindActive(ctx context.Context) ([]*workflow.Workflow, error) {
	return r.find(ctx, bson.M{"status": bson.M{"$in": activeStatuses}}, 0)
}

// FindPending returns up to limit PENDING workflows, oldest first.
func (r *MongoRepository) FindPending(ctx context.Context, limit int64) ([]*workflow.Workflow, error) {
	return r.find(ctx, bson.M{"status": string(workflow.StatusPending)}, limit)
}

// FindForRetry returns FAILED workflows whose retry budget is not spent.
func (r *MongoRepository) FindForRetry(ctx context.Context, limit int64) ([]*workflow.Workflow, error) {
	filter := bson.M{
		"status": string(workflow.StatusFailed),
		"$expr":  bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
	}
	return r.find(ctx, filter, limit)
}

// FindForWavelessProcessing returns admission candidates for the waveless
// scheduler: pending, and either urgent or of a waveless-capable type.
func (r *MongoRepository) FindForWavelessProcessing(ctx context.Context, limit int64) ([]*workflow.Workflow, error) {
	wavelessTypes := []string{
		string(workflow.TypeOrderFulfillment),
		string(workflow.TypePicking),
		string(workflow.TypePacking),
		string(workflow.TypeWaveless),
	}
	filter := bson.M{
		"status": string(workflow.StatusPending),
		"$or": bson.A{
			bson.M{"priority": string(workflow.PriorityHigh)},
			bson.M{"type": bson.M{"$in": wavelessTypes}},
		},
	}
	return r.find(ctx, filter, limit)
}

// FindByCreatedAtBetween returns workflows created in [from, to).
func (r *MongoRepository) FindByCreatedAtBetween(ctx context.Context, from, to time.Time) ([]*workflow.Workflow, error) {
	return r.find(ctx, bson.M{"createdAt": bson.M{"$gte": from, "$lt": to}}, 0)
}

// CountByStatus counts workflows in the given status.
func (r *MongoRepository) CountByStatus(ctx context.Context, status workflow.WorkflowStatus) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"status": string(status)})
	if err != nil {
		return 0, fmt.Errorf("counting workflows by status %s: %w", status, err)
	}
	return n, nil
}

// ExistsByID reports whether a workflow with the id exists.
func (r *MongoRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking workflow %s: %w", id, err)
	}
	return n > 0, nil
}

// DeleteByID removes a workflow document. Retention/purge path only.
func (r *MongoRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting workflow %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateStatus sets the status field directly. Idempotent admin path; it
// bypasses the aggregate state machine on purpose.
func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, status workflow.WorkflowStatus) error {
	update := bson.M{"$set": bson.M{"status": string(status), "updatedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("updating workflow %s status: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, limit int64) ([]*workflow.Workflow, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*workflow.Workflow
	for cursor.Next(ctx) {
		var doc workflowDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding workflow document: %w", err)
		}
		out = append(out, workflow.FromSnapshot(doc.toSnapshot()))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflows: %w", err)
	}
	return out, nil
}
