package pruneops_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/invitetree/internal/app/store/pruneops"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"github.com/dalemusser/invitetree/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newOp(status string, created time.Time) models.PruneOperation {
	root := primitive.NewObjectID()
	return models.PruneOperation{
		RootUserID:        root,
		AffectedUserCount: 1,
		Reason:            "spam",
		ExecutedBy:        primitive.NewObjectID(),
		Status:            status,
		CreatedAt:         created,
		AffectedUsers: []models.AffectedUser{
			{ID: root, Username: "root", Status: "active", Depth: 0, DescendantsCount: 0},
		},
	}
}

func TestStore_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := pruneops.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	op, err := store.Insert(ctx, newOp(models.PruneStatusPending, time.Time{}))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Rollback of a pending operation is refused.
	ok, err := store.MarkRolledBack(ctx, op.ID, primitive.NewObjectID(), time.Now().UTC())
	if err != nil || ok {
		t.Fatalf("MarkRolledBack on pending: ok=%v err=%v", ok, err)
	}

	ok, err = store.MarkCompleted(ctx, op.ID, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("MarkCompleted: ok=%v err=%v", ok, err)
	}
	ok, err = store.MarkCompleted(ctx, op.ID, time.Now().UTC())
	if err != nil || ok {
		t.Fatalf("second MarkCompleted: ok=%v err=%v", ok, err)
	}

	actor := primitive.NewObjectID()
	ok, err = store.MarkRolledBack(ctx, op.ID, actor, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("MarkRolledBack: ok=%v err=%v", ok, err)
	}

	got, err := store.GetByID(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.PruneStatusRolledBack {
		t.Errorf("expected rolled_back, got %q", got.Status)
	}
	if got.ExecutedAt == nil || got.RolledBackAt == nil {
		t.Error("expected executed_at and rolled_back_at to be set")
	}
	if got.RolledBackBy == nil || *got.RolledBackBy != actor {
		t.Errorf("rolled_back_by = %v, want %v", got.RolledBackBy, actor)
	}
	if len(got.AffectedUsers) != 1 || got.AffectedUsers[0].Username != "root" {
		t.Errorf("affected users snapshot not persisted: %+v", got.AffectedUsers)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := pruneops.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestStore_ListAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := pruneops.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := store.Insert(ctx, newOp(models.PruneStatusCompleted, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	ops, err := store.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(ops))
	}
	if !ops[0].CreatedAt.After(ops[1].CreatedAt) {
		t.Error("expected newest first")
	}
	if len(ops[0].AffectedUsers) != 0 {
		t.Error("expected List to omit affected users")
	}

	n, err := store.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3", n, err)
	}
}

func TestStore_StalePending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := pruneops.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	stale, _ := store.Insert(ctx, newOp(models.PruneStatusPending, now.Add(-2*time.Hour)))
	_, _ = store.Insert(ctx, newOp(models.PruneStatusPending, now))
	_, _ = store.Insert(ctx, newOp(models.PruneStatusCompleted, now.Add(-2*time.Hour)))

	got, err := store.StalePending(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("StalePending failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Errorf("expected only the stale pending op, got %+v", got)
	}
}
