package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/invitetree/internal/app/store/audit"
	"github.com/dalemusser/invitetree/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Append_SequentialIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var last int64
	for i := 0; i < 5; i++ {
		e, err := store.Append(ctx, audit.Entry{EventType: audit.EventUserFlagged})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if e.ID != last+1 {
			t.Errorf("entry %d: got id %d, want %d", i, e.ID, last+1)
		}
		last = e.ID
	}
}

func TestStore_Append_SetsCreatedAt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	before := time.Now().Add(-time.Second)
	e, err := store.Append(ctx, audit.Entry{EventType: audit.EventUserFlagged})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if e.CreatedAt.Before(before) {
		t.Errorf("CreatedAt %v not set to now", e.CreatedAt)
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	target := primitive.NewObjectID()
	other := primitive.NewObjectID()

	entries := []audit.Entry{
		{EventType: audit.EventUserPruned, ActorID: &actor, TargetID: &target, Data: bson.M{"depth": 0}},
		{EventType: audit.EventUserPruned, ActorID: &actor, TargetID: &other, Data: bson.M{"depth": 1}},
		{EventType: audit.EventPruneRolledBack, ActorID: &actor, TargetID: &target},
		{EventType: audit.EventQuotaAdjusted, TargetID: &other},
	}
	for _, e := range entries {
		if _, err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{"all", audit.QueryFilter{}, 4},
		{"by event type", audit.QueryFilter{EventType: audit.EventUserPruned}, 2},
		{"by actor", audit.QueryFilter{ActorID: &actor}, 3},
		{"by target", audit.QueryFilter{TargetID: &target}, 2},
		{"type and target", audit.QueryFilter{EventType: audit.EventUserPruned, TargetID: &other}, 1},
		{"limit", audit.QueryFilter{Limit: 2}, 2},
		{"offset", audit.QueryFilter{Offset: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}

	n, err := store.Count(ctx, audit.QueryFilter{EventType: audit.EventUserPruned})
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}
}

func TestStore_Query_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	target := primitive.NewObjectID()
	for _, ev := range []string{audit.EventUserPruned, audit.EventPruneRolledBack, audit.EventUserFlagged} {
		if _, err := store.Append(ctx, audit.Entry{EventType: ev, TargetID: &target}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.ForTarget(ctx, target, 10)
	if err != nil {
		t.Fatalf("ForTarget failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].EventType != audit.EventUserFlagged || got[2].EventType != audit.EventUserPruned {
		t.Errorf("unexpected order: %s, %s, %s", got[0].EventType, got[1].EventType, got[2].EventType)
	}
}

func TestStore_Query_TimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := store.Append(ctx, audit.Entry{EventType: audit.EventQuotaAdjusted, CreatedAt: old}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := store.Append(ctx, audit.Entry{EventType: audit.EventUserStatusChanged}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	since := time.Now().UTC().Add(-time.Hour)
	got, err := store.Query(ctx, audit.QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].EventType != audit.EventUserStatusChanged {
		t.Errorf("expected only the recent entry, got %+v", got)
	}
}
