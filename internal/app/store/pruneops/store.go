// internal/app/store/pruneops/store.go
package pruneops

import (
	"context"
	"time"

	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists prune operation records.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("prune_operations")}
}


// Insert stores op as given. Callers set Status; ID and CreatedAt are filled
// in when unset.
func (s *Store) Insert(ctx context.Context, op models.PruneOperation) (models.PruneOperation, error) {
	if op.ID.IsZero() {
		op.ID = primitive.NewObjectID()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	if op.AffectedUsers == nil {
		op.AffectedUsers = []models.AffectedUser{}
	}
	if _, err := s.c.InsertOne(ctx, op); err != nil {
		return models.PruneOperation{}, err
	}
	return op, nil
}

// GetByID returns mongo.ErrNoDocuments if the operation does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PruneOperation, error) {
	var op models.PruneOperation
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&op); err != nil {
		return nil, err
	}
	return &op, nil
}

// List returns operations newest first without their affected-user
// snapshots.
func (s *Store) List(ctx context.Context, limit, offset int64) ([]models.PruneOperation, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"affected_users": 0}).
		SetLimit(limit).
		SetSkip(offset)
	return s.find(ctx, bson.M{}, opts)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// MarkCompleted moves a pending operation to completed.
// It reports whether the row was pending.
func (s *Store) MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.PruneStatusPending},
		bson.M{"$set": bson.M{"status": models.PruneStatusCompleted, "executed_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MarkRolledBack moves a completed operation to rolled_back.
// It reports whether the row was completed.
func (s *Store) MarkRolledBack(ctx context.Context, id, actorID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.PruneStatusCompleted},
		bson.M{"$set": bson.M{
			"status":         models.PruneStatusRolledBack,
			"rolled_back_at": at,
			"rolled_back_by": actorID,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// StalePending returns operations still pending and created before
// olderThan. Such rows belong to interrupted runs.
func (s *Store) StalePending(ctx context.Context, olderThan time.Time) ([]models.PruneOperation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"affected_users": 0})
	return s.find(ctx, bson.M{
		"status":     models.PruneStatusPending,
		"created_at": bson.M{"$lt": olderThan},
	}, opts)
}

func (s *Store) find(ctx context.Context, filter any, opts *options.FindOptions) ([]models.PruneOperation, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PruneOperation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
