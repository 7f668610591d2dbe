// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/invitetree/internal/app/health"
	"github.com/dalemusser/invitetree/internal/app/prune"
	"github.com/dalemusser/invitetree/internal/app/quota"
	"go.uber.org/zap"
)

// Job names.
const (
	JobHealthScores = "health-scores"
	JobFlagLow      = "flag-low-health"
	JobQuota        = "quota-adjust"
	JobStalePrune   = "stale-prune-check"
)

// stalePruneAge is how long a prune may stay pending before it is reported.
const stalePruneAge = time.Hour

// HealthScoresJob stores a fresh snapshot for every live user and then
// flags users whose new score is below the configured threshold.
func HealthScoresJob(engine *health.Engine, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     JobHealthScores,
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := engine.CalculateAll(ctx)
			if err != nil {
				return err
			}
			flagged, err := engine.FlagLowHealth(ctx, nil)
			if err != nil {
				return err
			}
			logger.Info("health pass complete",
				zap.Int("scored", n),
				zap.Int("flagged", flagged))
			return nil
		},
	}
}

// FlagLowHealthJob flags users from existing snapshots without rescoring.
// It is not scheduled by default; the health job already flags.
func FlagLowHealthJob(engine *health.Engine, logger *zap.Logger) Job {
	return Job{
		Name: JobFlagLow,
		Run: func(ctx context.Context) error {
			n, err := engine.FlagLowHealth(ctx, nil)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("flagged low health users", zap.Int("count", n))
			}
			return nil
		},
	}
}

// QuotaAdjustJob grants extra invites to long-standing users.
func QuotaAdjustJob(svc *quota.Service, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     JobQuota,
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := svc.Adjust(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("invite quotas adjusted", zap.Int("count", n))
			}
			return nil
		},
	}
}

// StalePruneJob reports prune operations stuck in pending. They never took
// effect and need an operator to look at them.
func StalePruneJob(engine *prune.Engine, logger *zap.Logger) Job {
	return Job{
		Name:     JobStalePrune,
		Interval: stalePruneAge,
		Run: func(ctx context.Context) error {
			ops, err := engine.StalePending(ctx, stalePruneAge)
			if err != nil {
				return err
			}
			for _, op := range ops {
				logger.Warn("prune operation stuck in pending",
					zap.String("operation_id", op.ID.Hex()),
					zap.String("root_id", op.RootUserID.Hex()),
					zap.Time("created_at", op.CreatedAt))
			}
			return nil
		},
	}
}
