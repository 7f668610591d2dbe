// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	"github.com/dalemusser/invitetree/internal/app/system/tasks"
	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

var (
	runnerMu sync.Mutex
	runner   *tasks.Runner
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// applies the configured deadlines and starts the background jobs when
// they are enabled.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Long:  appCfg.PruneTimeout,
		Batch: appCfg.JobTimeout,
	})

	if !appCfg.JobsEnabled {
		logger.Info("background jobs disabled")
		return nil
	}

	svc := NewServices(deps.MongoDatabase, appCfg, logger)
	r := tasks.NewRunner(logger, svc.Jobs(appCfg, logger)...)
	r.Start()

	runnerMu.Lock()
	runner = r
	runnerMu.Unlock()
	return nil
}
