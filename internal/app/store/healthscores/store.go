// internal/app/store/healthscores/store.go
package healthscores

import (
	"context"
	"time"

	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store holds immutable health snapshots. Rows are only ever inserted.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("health_scores")}
}

// Insert stores a new snapshot, assigning ID and CalculatedAt when unset.
func (s *Store) Insert(ctx context.Context, h models.HealthScore) (models.HealthScore, error) {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	if h.CalculatedAt.IsZero() {
		h.CalculatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, h); err != nil {
		return models.HealthScore{}, err
	}
	return h, nil
}

// Latest returns the most recent snapshot for userID.
// Returns mongo.ErrNoDocuments if none exists.
func (s *Store) Latest(ctx context.Context, userID primitive.ObjectID) (*models.HealthScore, error) {
	var h models.HealthScore
	opts := options.FindOne().SetSort(bson.D{{Key: "calculated_at", Value: -1}, {Key: "_id", Value: -1}})
	if err := s.c.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// History returns up to limit snapshots for userID, newest first.
func (s *Store) History(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.HealthScore, error) {
	if limit <= 0 {
		limit = 30
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "calculated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.HealthScore
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentBelow returns the distinct users with a snapshot calculated at or
// after since whose overall health is below threshold.
func (s *Store) RecentBelow(ctx context.Context, threshold float64, since time.Time) ([]primitive.ObjectID, error) {
	raw, err := s.c.Distinct(ctx, "user_id", bson.M{
		"calculated_at":  bson.M{"$gte": since},
		"overall_health": bson.M{"$lt": threshold},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CountForUser returns how many snapshots exist for userID.
func (s *Store) CountForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}
