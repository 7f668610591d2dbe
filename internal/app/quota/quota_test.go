package quota_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/invitetree/internal/app/quota"
	"github.com/dalemusser/invitetree/internal/app/store/audit"
	userstore "github.com/dalemusser/invitetree/internal/app/store/users"
	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/auditlog"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"github.com/dalemusser/invitetree/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestRegister(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	svc := quota.New(db, users, nil, quota.Policy{DefaultQuota: 2}, zap.NewNop())

	inviter, err := users.Create(ctx, models.User{Username: "inviter", InviteQuota: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	u, err := svc.Register(ctx, inviter.ID, "newbie", "newbie@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.InviteQuota != 2 || u.InvitedBy == nil || *u.InvitedBy != inviter.ID {
		t.Errorf("unexpected user: %+v", u)
	}

	_, err = svc.Register(ctx, inviter.ID, "second", "second@example.com")
	if !errors.Is(err, apperr.ErrInsufficientQuota) {
		t.Errorf("expected ErrInsufficientQuota, got %v", err)
	}
}

func TestAdjust(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.New(db)
	al := auditlog.New(audit.New(db), zap.NewNop(), auditlog.Config{})
	// Fixture users are a day old, so no minimum age here.
	svc := quota.New(db, users, al, quota.Policy{MaxQuota: 50, MinAgeDays: 0, LowAvailable: 3}, zap.NewNop())
	fx := testutil.NewFixtures(t, db)

	low := fx.CreateUser(ctx, "low", nil, "active")
	if _, err := users.SetInviteQuota(ctx, low.ID, 1); err != nil {
		t.Fatalf("SetInviteQuota: %v", err)
	}
	fx.CreateUser(ctx, "plenty", nil, "active")
	flagged := fx.CreateUser(ctx, "flagged", nil, "flagged")
	if _, err := users.SetInviteQuota(ctx, flagged.ID, 1); err != nil {
		t.Fatalf("SetInviteQuota: %v", err)
	}

	n, err := svc.Adjust(ctx)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if n != 1 {
		t.Errorf("granted %d, want 1", n)
	}
	got, _ := users.GetByID(ctx, low.ID)
	if got.InviteQuota != 2 {
		t.Errorf("quota = %d, want 2", got.InviteQuota)
	}
	if c := fx.CountCollection(ctx, "invite_audit_log", bson.M{"event_type": audit.EventQuotaAdjusted}); c != 1 {
		t.Errorf("quota_adjusted entries = %d, want 1", c)
	}
}
