// Package prune soft-deletes whole branches of the invite forest and can
// put them back.
//
// An operation moves pending -> completed inside one transaction together
// with every soft-delete and audit entry it causes. Rollback moves
// completed -> rolled_back, again in one transaction. A row left pending
// belongs to an interrupted run that never took effect.
package prune

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/invitetree/internal/app/store/pruneops"
	userstore "github.com/dalemusser/invitetree/internal/app/store/users"
	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/auditlog"
	"github.com/dalemusser/invitetree/internal/app/system/metrics"
	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"github.com/dalemusser/invitetree/internal/app/system/txn"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ReasonPrefix is prepended to the operator's reason on each deleted user.
const ReasonPrefix = "Pruned: "

const recheckBatch = 500

// Options controls how operations are committed.
type Options struct {
	// RequireTransactions refuses to run on deployments without
	// multi-document transactions. When false, such deployments run the
	// writes sequentially and an interrupted run may leave partial state.
	RequireTransactions bool
}

// Request describes one prune.
type Request struct {
	RootID    primitive.ObjectID
	ActorID   primitive.ObjectID
	Reason    string
	IP        string
	UserAgent string
}

// Traverser is the part of the tree engine pruning needs.
type Traverser interface {
	Descendants(ctx context.Context, rootID primitive.ObjectID, maxDepth int) ([]tree.DescendantRecord, error)
}

type Engine struct {
	db    *mongo.Database
	tree  Traverser
	users *userstore.Store
	ops   *pruneops.Store
	audit *auditlog.Logger
	opts  Options
	log   *zap.Logger

	now func() time.Time
}

// New builds a prune engine. audit must not be nil: audit writes are part
// of the transaction.
func New(db *mongo.Database, t Traverser, users *userstore.Store, ops *pruneops.Store, audit *auditlog.Logger, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:    db,
		tree:  t,
		users: users,
		ops:   ops,
		audit: audit,
		opts:  opts,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) inTxn(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), e.log, op)
	defer cancel()
	if e.opts.RequireTransactions {
		return txn.RunRequired(ctx, e.db, e.log, fn)
	}
	return txn.Run(ctx, e.db, e.log, fn)
}

// AffectedUsers returns rootID and every live user below it, each with the
// size of its own branch. A root that is unknown or already deleted has no
// affected users and yields NotFound.
func (e *Engine) AffectedUsers(ctx context.Context, rootID primitive.ObjectID) ([]models.AffectedUser, error) {
	recs, err := e.tree.Descendants(ctx, rootID, tree.NoLimit)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.NotFound("user %s not found", rootID.Hex())
	}

	sizes := tree.SubtreeSizes(recs)
	out := make([]models.AffectedUser, len(recs))
	for i, r := range recs {
		out[i] = models.AffectedUser{
			ID:               r.ID,
			Username:         r.Username,
			Email:            r.Email,
			Status:           r.Status,
			InvitedBy:        r.InvitedBy,
			CreatedAt:        r.CreatedAt,
			Depth:            r.Depth,
			DescendantsCount: sizes[r.ID],
		}
	}
	return out, nil
}

// Execute prunes the branch below req.RootID. The root must exist, must not
// be a core member and must not already be deleted.
func (e *Engine) Execute(ctx context.Context, req Request) (*models.PruneOperation, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperr.BadRequest("a prune reason is required")
	}
	if req.ActorID.IsZero() {
		return nil, apperr.BadRequest("a prune actor is required")
	}

	var op models.PruneOperation
	err := e.inTxn(ctx, "prune execute", func(ctx context.Context) error {
		root, err := e.users.GetByID(ctx, req.RootID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("user %s not found", req.RootID.Hex())
		}
		if err != nil {
			return fmt.Errorf("load root: %w", err)
		}
		if root.IsCoreMember {
			return apperr.BadRequest("user %s is a core member and cannot be pruned", root.Username)
		}
		if root.IsDeleted() {
			return apperr.BadRequest("user %s is already deleted", root.Username)
		}

		affected, err := e.AffectedUsers(ctx, req.RootID)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && len(affected) == 0) {
			return apperr.BadRequest("no users to prune under %s", req.RootID.Hex())
		}
		if err != nil {
			return err
		}

		op, err = e.ops.Insert(ctx, models.PruneOperation{
			RootUserID:        req.RootID,
			AffectedUserCount: len(affected),
			Reason:            reason,
			ExecutedBy:        req.ActorID,
			Status:            models.PruneStatusPending,
			CreatedAt:         e.now(),
			AffectedUsers:     affected,
		})
		if err != nil {
			return fmt.Errorf("insert prune operation: %w", err)
		}

		now := e.now()
		fctx := auditlog.Request{IP: req.IP, UserAgent: req.UserAgent}
		ids := make([]primitive.ObjectID, 0, len(affected))
		for _, au := range affected {
			ids = append(ids, au.ID)
			changed, err := e.users.SoftDelete(ctx, au.ID, now, ReasonPrefix+reason)
			if err != nil {
				return fmt.Errorf("soft delete %s: %w", au.ID.Hex(), err)
			}
			if !changed {
				continue
			}
			if err := e.audit.UserPruned(ctx, op.ID, req.ActorID, au.ID, au.Depth, reason, fctx); err != nil {
				return fmt.Errorf("audit %s: %w", au.ID.Hex(), err)
			}
		}

		if err := e.recheck(ctx, ids); err != nil {
			return err
		}

		ok, err := e.ops.MarkCompleted(ctx, op.ID, now)
		if err != nil {
			return fmt.Errorf("complete prune operation: %w", err)
		}
		if !ok {
			return fmt.Errorf("prune operation %s left pending state unexpectedly", op.ID.Hex())
		}
		op.Status = models.PruneStatusCompleted
		op.ExecutedAt = &now
		return nil
	})

	metrics.PruneOperations.WithLabelValues("execute", metrics.Result(err)).Inc()
	if err != nil {
		e.log.Warn("prune failed",
			zap.String("root_id", req.RootID.Hex()),
			zap.String("actor_id", req.ActorID.Hex()),
			zap.Error(err))
		return nil, err
	}
	metrics.PruneAffectedUsers.Observe(float64(op.AffectedUserCount))
	e.log.Info("branch pruned",
		zap.String("operation_id", op.ID.Hex()),
		zap.String("root_id", req.RootID.Hex()),
		zap.String("actor_id", req.ActorID.Hex()),
		zap.Int("affected", op.AffectedUserCount))
	return &op, nil
}

// recheck fails if a live user still hangs off any pruned user. That only
// happens when a registration slipped in after the branch was read.
func (e *Engine) recheck(ctx context.Context, pruned []primitive.ObjectID) error {
	for i := 0; i < len(pruned); i += recheckBatch {
		end := min(i+recheckBatch, len(pruned))
		left, err := e.users.ListChildren(ctx, pruned[i:end])
		if err != nil {
			return fmt.Errorf("recheck branch: %w", err)
		}
		if len(left) > 0 {
			return apperr.BadRequest("branch changed during prune (new user %s); retry", left[0].Username)
		}
	}
	return nil
}

// Rollback restores every user recorded in a completed operation to active
// and marks the operation rolled back. Users keep no memory of the status
// they had before the prune.
func (e *Engine) Rollback(ctx context.Context, opID, actorID primitive.ObjectID) (*models.PruneOperation, error) {
	if actorID.IsZero() {
		return nil, apperr.BadRequest("a rollback actor is required")
	}

	var op *models.PruneOperation
	restored := 0
	err := e.inTxn(ctx, "prune rollback", func(ctx context.Context) error {
		restored = 0
		var err error
		op, err = e.ops.GetByID(ctx, opID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("prune operation %s not found", opID.Hex())
		}
		if err != nil {
			return fmt.Errorf("load prune operation: %w", err)
		}
		if op.Status != models.PruneStatusCompleted {
			return apperr.BadRequest("prune operation %s is %s, only completed operations can be rolled back", opID.Hex(), op.Status)
		}

		for _, au := range op.AffectedUsers {
			changed, err := e.users.Restore(ctx, au.ID)
			if err != nil {
				return fmt.Errorf("restore %s: %w", au.ID.Hex(), err)
			}
			if !changed {
				continue
			}
			restored++
			if err := e.audit.PruneRolledBack(ctx, op.ID, actorID, au.ID, op.Reason); err != nil {
				return fmt.Errorf("audit %s: %w", au.ID.Hex(), err)
			}
		}

		now := e.now()
		ok, err := e.ops.MarkRolledBack(ctx, op.ID, actorID, now)
		if err != nil {
			return fmt.Errorf("mark rolled back: %w", err)
		}
		if !ok {
			return apperr.BadRequest("prune operation %s was rolled back concurrently", opID.Hex())
		}
		op.Status = models.PruneStatusRolledBack
		op.RolledBackAt = &now
		op.RolledBackBy = &actorID
		return nil
	})

	metrics.PruneOperations.WithLabelValues("rollback", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	e.log.Info("prune rolled back",
		zap.String("operation_id", opID.Hex()),
		zap.String("actor_id", actorID.Hex()),
		zap.Int("restored", restored))
	return op, nil
}

// GetOperation returns one operation with its affected-user snapshot.
func (e *Engine) GetOperation(ctx context.Context, id primitive.ObjectID) (*models.PruneOperation, error) {
	op, err := e.ops.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("prune operation %s not found", id.Hex())
	}
	return op, err
}

// ListOperations pages through operations newest first and returns the
// total count.
func (e *Engine) ListOperations(ctx context.Context, limit, offset int64) ([]models.PruneOperation, int64, error) {
	ops, err := e.ops.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := e.ops.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

// StalePending lists operations that have been pending for longer than age.
func (e *Engine) StalePending(ctx context.Context, age time.Duration) ([]models.PruneOperation, error) {
	return e.ops.StalePending(ctx, e.now().Add(-age))
}
