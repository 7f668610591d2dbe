package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
//
// Users are created with strictly increasing created_at values one second
// apart, so traversal order in tests is deterministic.
type Fixtures struct {
	db    *mongo.Database
	t     *testing.T
	clock time.Time
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{
		db:    db,
		t:     t,
		clock: time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second),
	}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// CreateUser inserts a live user with the given inviter and status.
func (f *Fixtures) CreateUser(ctx context.Context, username string, invitedBy *primitive.ObjectID, status string) models.User {
	f.t.Helper()

	now := f.tick()
	user := models.User{
		ID:          primitive.NewObjectID(),
		Username:    username,
		Email:       username + "@example.com",
		Role:        "user",
		Status:      status,
		InvitedBy:   invitedBy,
		InviteQuota: 5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, user)
	return user
}

// CreateCoreMember inserts a root core member.
func (f *Fixtures) CreateCoreMember(ctx context.Context, username string) models.User {
	f.t.Helper()

	now := f.tick()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        username + "@example.com",
		Role:         "user",
		Status:       "active",
		IsCoreMember: true,
		InviteQuota:  100,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.insert(ctx, user)
	return user
}

// CreateChild inserts an active user invited by parent.
func (f *Fixtures) CreateChild(ctx context.Context, username string, parent models.User) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, username, &parent.ID, "active")
}

// SoftDelete marks a user deleted directly in the collection.
func (f *Fixtures) SoftDelete(ctx context.Context, id primitive.ObjectID) {
	f.t.Helper()

	now := time.Now().UTC()
	_, err := f.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deleted_at": now, "deleted_reason": "test", "status": "banned"}})
	if err != nil {
		f.t.Fatalf("failed to soft delete test user: %v", err)
	}
}

// Tree is the sample invite tree:
//
//	root (core member)
//	├── child1
//	│   ├── grandchild1 (active)
//	│   └── grandchild2 (flagged)
//	└── child2
type Tree struct {
	Root, Child1, Child2, Grandchild1, Grandchild2 models.User
}

// CreateSampleTree inserts the sample tree. Pass rootCore=false to make the
// root an ordinary (prunable) user.
func (f *Fixtures) CreateSampleTree(ctx context.Context, rootCore bool) Tree {
	f.t.Helper()

	var tr Tree
	if rootCore {
		tr.Root = f.CreateCoreMember(ctx, "root")
	} else {
		tr.Root = f.CreateUser(ctx, "root", nil, "active")
	}
	tr.Child1 = f.CreateChild(ctx, "child1", tr.Root)
	tr.Child2 = f.CreateChild(ctx, "child2", tr.Root)
	tr.Grandchild1 = f.CreateChild(ctx, "grandchild1", tr.Child1)
	tr.Grandchild2 = f.CreateUser(ctx, "grandchild2", &tr.Child1.ID, "flagged")
	return tr
}

// CountCollection counts documents in a collection.
func (f *Fixtures) CountCollection(ctx context.Context, name string, filter bson.M) int64 {
	f.t.Helper()

	n, err := f.db.Collection(name).CountDocuments(ctx, filter)
	if err != nil {
		f.t.Fatalf("count %s: %v", name, err)
	}
	return n
}

func (f *Fixtures) insert(ctx context.Context, user models.User) {
	f.t.Helper()
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
}
