// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background jobs and the API limiter, then tears down DB
// connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	runnerMu.Lock()
	r := runner
	runner = nil
	runnerMu.Unlock()
	if r != nil {
		r.Stop()
	}

	limiterMu.Lock()
	if apiLimiter != nil {
		apiLimiter.Stop()
		apiLimiter = nil
	}
	limiterMu.Unlock()

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
