// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Tree events
const (
	EventUserPruned        = "user_pruned"
	EventPruneRolledBack   = "prune_rolled_back"
	EventQuotaAdjusted     = "quota_adjusted"
	EventUserFlagged       = "user_flagged"
	EventUserStatusChanged = "user_status_changed"
)

// Entry is one append-only audit record. ID is a strictly increasing
// sequence number, so ordering by ID is chronological.
type Entry struct {
	ID        int64               `bson:"_id" json:"id"`
	EventType string              `bson:"event_type" json:"event_type"`
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	TargetID  *primitive.ObjectID `bson:"target_id,omitempty" json:"target_id,omitempty"`
	Data      bson.M              `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`

	IP        string `bson:"ip,omitempty" json:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// QueryFilter defines filters for querying audit entries.
type QueryFilter struct {
	EventType string
	ActorID   *primitive.ObjectID
	TargetID  *primitive.ObjectID
	Since     *time.Time
	Until     *time.Time
	Limit     int64
	Offset    int64
}

const (
	collectionName = "invite_audit_log"
	countersName   = "counters"
	sequenceKey    = "invite_audit_log"
)

// Store manages audit entries.
type Store struct {
	c        *mongo.Collection
	counters *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection(collectionName),
		counters: db.Collection(countersName),
	}
}

// EnsureIndexes creates the query indexes. The sequence lives in _id and
// needs none.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "_id", Value: -1}}},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Append assigns the next sequence id and inserts the entry. Inside a
// transaction both the counter bump and the insert roll back together.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return Entry{}, err
	}
	e.ID = id
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var row struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": sequenceKey},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&row)
	if err != nil {
		return 0, err
	}
	return row.Seq, nil
}

// Query retrieves entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of entries matching the filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// ForTarget returns the most recent entries about one user.
func (s *Store) ForTarget(ctx context.Context, targetID primitive.ObjectID, limit int64) ([]Entry, error) {
	return s.Query(ctx, QueryFilter{TargetID: &targetID, Limit: limit})
}

func buildQuery(f QueryFilter) bson.M {
	q := bson.M{}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.ActorID != nil {
		q["actor_id"] = *f.ActorID
	}
	if f.TargetID != nil {
		q["target_id"] = *f.TargetID
	}
	if f.Since != nil || f.Until != nil {
		tq := bson.M{}
		if f.Since != nil {
			tq["$gte"] = *f.Since
		}
		if f.Until != nil {
			tq["$lte"] = *f.Until
		}
		q["created_at"] = tq
	}
	return q
}
