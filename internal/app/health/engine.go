// Package health scores the trustworthiness of a user's branch and keeps an
// append-only history of those scores.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/auditlog"
	"github.com/dalemusser/invitetree/internal/app/system/metrics"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// flagWindow is how far back FlagLowHealth looks for snapshots.
const flagWindow = 24 * time.Hour

// Traverser is the part of the tree engine scoring needs.
type Traverser interface {
	Descendants(ctx context.Context, rootID primitive.ObjectID, maxDepth int) ([]tree.DescendantRecord, error)
}

// Users is the part of the user store scoring needs.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	LiveIDs(ctx context.Context) ([]primitive.ObjectID, error)
	FlagIfActive(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Snapshots stores health scores.
type Snapshots interface {
	Insert(ctx context.Context, h models.HealthScore) (models.HealthScore, error)
	Latest(ctx context.Context, userID primitive.ObjectID) (*models.HealthScore, error)
	History(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.HealthScore, error)
	RecentBelow(ctx context.Context, threshold float64, since time.Time) ([]primitive.ObjectID, error)
}

type Engine struct {
	tree   Traverser
	users  Users
	scores Snapshots
	audit  *auditlog.Logger
	cfg    Config
	log    *zap.Logger

	now func() time.Time
}

// New builds a scoring engine. audit may be nil.
func New(t Traverser, users Users, scores Snapshots, audit *auditlog.Logger, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		tree:   t,
		users:  users,
		scores: scores,
		audit:  audit,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the thresholds the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// CalculateHealthScore scores userID's branch without storing it.
// A user without descendants scores 100.
func (e *Engine) CalculateHealthScore(ctx context.Context, userID primitive.ObjectID) (float64, error) {
	recs, err := e.tree.Descendants(ctx, userID, tree.NoLimit)
	if err != nil {
		return 0, err
	}
	return Score(recs).Final, nil
}

// DetermineMaturityLevel classifies u given an already computed score.
func (e *Engine) DetermineMaturityLevel(ctx context.Context, u models.User, score float64) (string, error) {
	if u.IsCoreMember {
		return models.MaturityCore, nil
	}
	recs, err := e.tree.Descendants(ctx, u.ID, tree.NoLimit)
	if err != nil {
		return "", err
	}
	return Classify(e.cfg, u, score, tree.Summarize(recs), e.now()), nil
}

// CalculateAndStore scores userID and persists a new snapshot.
func (e *Engine) CalculateAndStore(ctx context.Context, userID primitive.ObjectID) (models.HealthScore, error) {
	u, err := e.users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.HealthScore{}, apperr.NotFound("user %s not found", userID.Hex())
	}
	if err != nil {
		return models.HealthScore{}, fmt.Errorf("load user: %w", err)
	}
	if u.IsDeleted() {
		return models.HealthScore{}, apperr.NotFound("user %s is deleted", userID.Hex())
	}

	recs, err := e.tree.Descendants(ctx, userID, tree.NoLimit)
	if err != nil {
		return models.HealthScore{}, err
	}
	b := Score(recs)
	stats := tree.Summarize(recs)
	now := e.now()

	snap, err := e.scores.Insert(ctx, models.HealthScore{
		UserID:              userID,
		CalculatedAt:        now,
		SubtreeSize:         stats.TotalDescendants,
		ActiveCount:         stats.ActiveCount,
		FlaggedCount:        stats.FlaggedCount,
		BannedCount:         stats.BannedCount,
		MaxDepthBelow:       stats.MaxDepth,
		DirectInviteeHealth: b.Level1,
		SubtreeHealth:       b.Weighted,
		OverallHealth:       b.Final,
		MaturityLevel:       Classify(e.cfg, *u, b.Final, stats, now),
	})
	if err != nil {
		return models.HealthScore{}, fmt.Errorf("store health score: %w", err)
	}
	metrics.HealthSnapshots.Inc()
	return snap, nil
}

// CalculateAll stores a snapshot for every live user. A failure on one user
// is logged and skipped. It returns how many snapshots were stored; the
// error is non-nil only when the user list cannot be read or ctx ends.
func (e *Engine) CalculateAll(ctx context.Context) (int, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.HealthBatchDuration, start)

	ids, err := e.users.LiveIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := e.CalculateAndStore(ctx, id); err != nil {
			metrics.HealthBatchErrors.Inc()
			e.log.Warn("health score failed",
				zap.String("user_id", id.Hex()),
				zap.Error(err))
			continue
		}
		done++
	}

	e.log.Info("health scores calculated",
		zap.Int("users", len(ids)),
		zap.Int("stored", done),
		zap.Duration("took", time.Since(start)))
	return done, nil
}

// FlagLowHealth flags every still-active user with a snapshot from the last
// 24 hours below threshold. A nil threshold uses the configured default.
// Users in any other status are left alone.
func (e *Engine) FlagLowHealth(ctx context.Context, threshold *float64) (int, error) {
	thr := e.cfg.LowThreshold
	if threshold != nil {
		thr = *threshold
	}

	ids, err := e.scores.RecentBelow(ctx, thr, e.now().Add(-flagWindow))
	if err != nil {
		return 0, fmt.Errorf("find low health users: %w", err)
	}

	flagged := 0
	for _, id := range ids {
		ok, err := e.users.FlagIfActive(ctx, id)
		if err != nil {
			e.log.Warn("flag user failed", zap.String("user_id", id.Hex()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		flagged++
		metrics.UsersFlagged.Inc()
		e.audit.UserFlagged(ctx, id, thr)
	}

	if flagged > 0 {
		e.log.Info("flagged low health users",
			zap.Int("flagged", flagged),
			zap.Float64("threshold", thr))
	}
	return flagged, nil
}

// Latest returns the newest snapshot for userID.
func (e *Engine) Latest(ctx context.Context, userID primitive.ObjectID) (*models.HealthScore, error) {
	h, err := e.scores.Latest(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("no health score for user %s", userID.Hex())
	}
	return h, err
}

// History returns up to limit snapshots for userID, newest first.
func (e *Engine) History(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.HealthScore, error) {
	return e.scores.History(ctx, userID, limit)
}
