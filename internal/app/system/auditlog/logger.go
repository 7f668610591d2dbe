// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"

	"github.com/dalemusser/invitetree/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Mirror also writes every stored entry to the structured log.
	Mirror bool
}

// Logger appends audit entries to the invite audit log and optionally
// mirrors them to zap.
//
// Record returns the store error so that writes made inside a transaction
// fail it. Log is fire-and-forget for callers whose own work must not fail
// on an audit write.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(e audit.Entry) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.Int64("audit_id", e.ID),
		zap.String("event_type", e.EventType),
	}
	if e.ActorID != nil {
		fields = append(fields, zap.String("actor_id", e.ActorID.Hex()))
	}
	if e.TargetID != nil {
		fields = append(fields, zap.String("target_id", e.TargetID.Hex()))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	for k, v := range e.Data {
		fields = append(fields, zap.Any("data_"+k, v))
	}
	l.zapLog.Info("audit event", fields...)
}

// Record appends e and returns the stored entry.
func (l *Logger) Record(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	stored, err := l.store.Append(ctx, e)
	if err != nil {
		return audit.Entry{}, err
	}
	if l.config.Mirror {
		l.logToZap(stored)
	}
	return stored, nil
}

// Log records e and logs, rather than returns, any failure.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, e audit.Entry) {
	if l == nil {
		return
	}
	if _, err := l.Record(ctx, e); err != nil {
		l.zapLog.Error("failed to store audit entry",
			zap.Error(err),
			zap.String("event_type", e.EventType),
		)
	}
}

// Request carries the optional forensic context of the caller.
type Request struct {
	IP        string
	UserAgent string
}

// UserPruned records the soft-deletion of one user by a prune operation.
func (l *Logger) UserPruned(ctx context.Context, opID, actorID, userID primitive.ObjectID, depth int, reason string, req Request) error {
	_, err := l.Record(ctx, audit.Entry{
		EventType: audit.EventUserPruned,
		ActorID:   &actorID,
		TargetID:  &userID,
		Data: bson.M{
			"prune_operation_id": opID.Hex(),
			"reason":             reason,
			"depth":              depth,
		},
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	return err
}

// PruneRolledBack records the restoration of one user. originalReason is
// the reason the operation was executed with.
func (l *Logger) PruneRolledBack(ctx context.Context, opID, actorID, userID primitive.ObjectID, originalReason string) error {
	_, err := l.Record(ctx, audit.Entry{
		EventType: audit.EventPruneRolledBack,
		ActorID:   &actorID,
		TargetID:  &userID,
		Data: bson.M{
			"prune_operation_id": opID.Hex(),
			"original_reason":    originalReason,
		},
	})
	return err
}

// UserFlagged records an automatic active to flagged transition.
func (l *Logger) UserFlagged(ctx context.Context, userID primitive.ObjectID, threshold float64) {
	l.Log(ctx, audit.Entry{
		EventType: audit.EventUserFlagged,
		TargetID:  &userID,
		Data: bson.M{
			"reason":    "low_health",
			"threshold": threshold,
		},
	})
}

// QuotaAdjusted records an automatic invite quota change.
func (l *Logger) QuotaAdjusted(ctx context.Context, userID primitive.ObjectID, oldQuota, newQuota int) {
	l.Log(ctx, audit.Entry{
		EventType: audit.EventQuotaAdjusted,
		TargetID:  &userID,
		Data: bson.M{
			"old_quota": oldQuota,
			"new_quota": newQuota,
		},
	})
}

// StatusChanged records an operator status change.
func (l *Logger) StatusChanged(ctx context.Context, actorID *primitive.ObjectID, userID primitive.ObjectID, from, to string) {
	l.Log(ctx, audit.Entry{
		EventType: audit.EventUserStatusChanged,
		ActorID:   actorID,
		TargetID:  &userID,
		Data: bson.M{
			"from": from,
			"to":   to,
		},
	})
}
