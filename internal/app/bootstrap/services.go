// internal/app/bootstrap/services.go
package bootstrap

import (
	"github.com/dalemusser/invitetree/internal/app/health"
	"github.com/dalemusser/invitetree/internal/app/prune"
	"github.com/dalemusser/invitetree/internal/app/quota"
	"github.com/dalemusser/invitetree/internal/app/store/audit"
	"github.com/dalemusser/invitetree/internal/app/store/healthscores"
	"github.com/dalemusser/invitetree/internal/app/store/pruneops"
	userstore "github.com/dalemusser/invitetree/internal/app/store/users"
	"github.com/dalemusser/invitetree/internal/app/system/auditlog"
	"github.com/dalemusser/invitetree/internal/app/system/tasks"
	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Services is the wired set of stores and engines. The HTTP handler, the
// background jobs, and invitetreectl all build on it.
type Services struct {
	Users    *userstore.Store
	Audit    *audit.Store
	AuditLog *auditlog.Logger
	Tree     *tree.Engine
	Health   *health.Engine
	Prune    *prune.Engine
	Quota    *quota.Service
}

// NewServices wires every engine against db.
func NewServices(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) *Services {
	users := userstore.New(db)
	auditStore := audit.New(db)
	al := auditlog.New(auditStore, logger, auditlog.Config{Mirror: appCfg.AuditLogMirror})
	te := tree.New(users, logger)

	policy := quota.DefaultPolicy()
	policy.DefaultQuota = appCfg.DefaultInviteQuota
	policy.MaxQuota = appCfg.QuotaGrantMax

	return &Services{
		Users:    users,
		Audit:    auditStore,
		AuditLog: al,
		Tree:     te,
		Health:   health.New(te, users, healthscores.New(db), al, appCfg.HealthConfig(), logger),
		Prune: prune.New(db, te, users, pruneops.New(db), al,
			prune.Options{RequireTransactions: appCfg.PruneRequireTransactions}, logger),
		Quota: quota.New(db, users, al, policy, logger),
	}
}

// Jobs returns the background jobs for these services.
func (s *Services) Jobs(appCfg AppConfig, logger *zap.Logger) []tasks.Job {
	return []tasks.Job{
		tasks.HealthScoresJob(s.Health, logger, appCfg.HealthJobInterval),
		tasks.FlagLowHealthJob(s.Health, logger),
		tasks.QuotaAdjustJob(s.Quota, logger, appCfg.QuotaJobInterval),
		tasks.StalePruneJob(s.Prune, logger),
	}
}

// DefaultAppConfig returns the configuration defaults without reading any
// source.
func DefaultAppConfig() AppConfig {
	hc := health.DefaultConfig()
	policy := quota.DefaultPolicy()
	return AppConfig{
		MongoURI:                 "mongodb://localhost:27017",
		MongoDatabase:            "invitetree",
		HealthLowThreshold:       hc.LowThreshold,
		TrunkMinDays:             hc.TrunkMinDays,
		TrunkMinHealth:           hc.TrunkMinHealth,
		TrunkMinDepth:            hc.TrunkMinDepth,
		TrunkMinSize:             hc.TrunkMinSize,
		DefaultInviteQuota:       policy.DefaultQuota,
		QuotaGrantMax:            policy.MaxQuota,
		TreeDefaultMaxDepth:      5,
		APIRateLimit:             600,
		PruneRequireTransactions: true,
		AuditLogMirror:           true,
		PruneTimeout:             timeouts.DefaultLong,
		JobTimeout:               timeouts.DefaultBatch,
	}
}
