// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"sync"
	"time"

	healthfeature "github.com/dalemusser/invitetree/internal/app/features/health"
	invitetreefeature "github.com/dalemusser/invitetree/internal/app/features/invitetree"
	"github.com/dalemusser/invitetree/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	limiterMu  sync.Mutex
	apiLimiter *ratelimit.Limiter
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The service exposes:
//   - /health: database reachability and transaction support
//   - /metrics: Prometheus collectors
//   - /api: the read-only invite tree API, rate limited per client IP
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := NewServices(deps.MongoDatabase, appCfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.PruneRequireTransactions, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.Handler())

	apiHandler := invitetreefeature.NewHandler(svc.Tree, svc.Health, svc.Prune, svc.Audit,
		appCfg.TreeDefaultMaxDepth, logger)
	r.Route("/api", func(api chi.Router) {
		if appCfg.APIRateLimit > 0 {
			l := ratelimit.New(appCfg.APIRateLimit, time.Minute)
			limiterMu.Lock()
			apiLimiter = l
			limiterMu.Unlock()
			api.Use(ratelimit.Middleware(l, logger))
		}
		api.Mount("/", invitetreefeature.Routes(apiHandler))
	})

	return r, nil
}
