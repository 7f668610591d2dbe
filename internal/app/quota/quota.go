// Package quota manages invite quotas: registering an invited user against
// the inviter's quota and the periodic top-up of long-standing users.
package quota

import (
	"context"
	"fmt"
	"time"

	userstore "github.com/dalemusser/invitetree/internal/app/store/users"
	"github.com/dalemusser/invitetree/internal/app/system/auditlog"
	"github.com/dalemusser/invitetree/internal/app/system/txn"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Policy holds the quota knobs.
type Policy struct {
	// DefaultQuota is given to every newly registered user.
	DefaultQuota int
	// MaxQuota caps automatic grants.
	MaxQuota int
	// MinAgeDays is the account age before a user can earn more invites.
	MinAgeDays int
	// LowAvailable: users with fewer invites left than this get a grant.
	LowAvailable int
}

func DefaultPolicy() Policy {
	return Policy{DefaultQuota: 5, MaxQuota: 50, MinAgeDays: 30, LowAvailable: 3}
}

type Service struct {
	db     *mongo.Database
	users  *userstore.Store
	audit  *auditlog.Logger
	policy Policy
	log    *zap.Logger

	now func() time.Time
}

func New(db *mongo.Database, users *userstore.Store, audit *auditlog.Logger, policy Policy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:     db,
		users:  users,
		audit:  audit,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user invited by inviterID and consumes one of the
// inviter's invites. Both writes commit together; the inviter write also
// makes a concurrent prune of the inviter's branch conflict.
func (s *Service) Register(ctx context.Context, inviterID primitive.ObjectID, username, email string) (models.User, error) {
	var created models.User
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		u, err := s.users.RegisterInvitee(ctx, inviterID, models.User{
			Username:    username,
			Email:       email,
			InviteQuota: s.policy.DefaultQuota,
		})
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("user registered",
		zap.String("user_id", created.ID.Hex()),
		zap.String("invited_by", inviterID.Hex()))
	return created, nil
}

// Adjust grants one extra invite to every eligible user and returns how
// many were granted. Per-user failures are logged and skipped.
func (s *Service) Adjust(ctx context.Context) (int, error) {
	cutoff := s.now().AddDate(0, 0, -s.policy.MinAgeDays)
	candidates, err := s.users.QuotaCandidates(ctx, cutoff, s.policy.MaxQuota, s.policy.LowAvailable)
	if err != nil {
		return 0, fmt.Errorf("find quota candidates: %w", err)
	}

	granted := 0
	for _, u := range candidates {
		if err := ctx.Err(); err != nil {
			return granted, err
		}
		newQuota := u.InviteQuota + 1
		old, err := s.users.SetInviteQuota(ctx, u.ID, newQuota)
		if err != nil {
			s.log.Warn("quota grant failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
			continue
		}
		granted++
		s.audit.QuotaAdjusted(ctx, u.ID, old, newQuota)
	}
	return granted, nil
}
