package auditlog_test

import (
	"testing"

	"github.com/dalemusser/invitetree/internal/app/store/audit"
	"github.com/dalemusser/invitetree/internal/app/system/auditlog"
	"github.com/dalemusser/invitetree/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Entry{EventType: "test"})
	logger.UserFlagged(ctx, primitive.NewObjectID(), 50)
	logger.QuotaAdjusted(ctx, primitive.NewObjectID(), 1, 2)
}

func TestLogger_UserPruned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})

	opID := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	user := primitive.NewObjectID()
	err := logger.UserPruned(ctx, opID, actor, user, 2, "spam", auditlog.Request{IP: "10.0.0.1", UserAgent: "curl/8"})
	if err != nil {
		t.Fatalf("UserPruned failed: %v", err)
	}

	entries, err := store.ForTarget(ctx, user, 10)
	if err != nil {
		t.Fatalf("ForTarget failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.EventType != audit.EventUserPruned {
		t.Errorf("event type = %q", e.EventType)
	}
	if e.ActorID == nil || *e.ActorID != actor {
		t.Errorf("actor = %v, want %v", e.ActorID, actor)
	}
	if e.Data["prune_operation_id"] != opID.Hex() {
		t.Errorf("operation id = %v", e.Data["prune_operation_id"])
	}
	if e.Data["reason"] != "spam" {
		t.Errorf("reason = %v", e.Data["reason"])
	}
	if e.IP != "10.0.0.1" || e.UserAgent != "curl/8" {
		t.Errorf("request context not stored: %q %q", e.IP, e.UserAgent)
	}
}

func TestLogger_PruneRolledBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})

	opID := primitive.NewObjectID()
	user := primitive.NewObjectID()
	if err := logger.PruneRolledBack(ctx, opID, primitive.NewObjectID(), user, "spam ring"); err != nil {
		t.Fatalf("PruneRolledBack failed: %v", err)
	}

	entries, err := store.ForTarget(ctx, user, 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ForTarget = %d entries, %v", len(entries), err)
	}
	e := entries[0]
	if e.EventType != audit.EventPruneRolledBack {
		t.Errorf("event type = %q", e.EventType)
	}
	if e.Data["prune_operation_id"] != opID.Hex() {
		t.Errorf("operation id = %v", e.Data["prune_operation_id"])
	}
	if e.Data["original_reason"] != "spam ring" {
		t.Errorf("original_reason = %v", e.Data["original_reason"])
	}
}

func TestLogger_Mirror(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Mirror: true})

	logger.QuotaAdjusted(ctx, primitive.NewObjectID(), 3, 4)

	if logs.FilterMessage("audit event").Len() != 1 {
		t.Fatalf("expected 1 mirrored log line, got %d", logs.Len())
	}
	n, err := store.Count(ctx, audit.QueryFilter{EventType: audit.EventQuotaAdjusted})
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}

func TestLogger_NoMirror(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Mirror: false})

	logger.UserFlagged(ctx, primitive.NewObjectID(), 50)

	if logs.Len() != 0 {
		t.Errorf("expected no log lines, got %d", logs.Len())
	}
	n, _ := store.Count(ctx, audit.QueryFilter{EventType: audit.EventUserFlagged})
	if n != 1 {
		t.Errorf("expected entry stored, got %d", n)
	}
}
