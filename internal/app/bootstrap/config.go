// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/invitetree/internal/app/health"
	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the invite tree service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, health_low_threshold, etc.
//   - Environment variables: INVITETREE_MONGO_URI, INVITETREE_HEALTH_LOW_THRESHOLD, etc.
//   - Command-line flags: --mongo_uri, --health_low_threshold, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "invitetree", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Health scoring
	{Name: "health_low_threshold", Default: "50", Desc: "Users whose latest score is below this are flagged"},
	{Name: "trunk_min_days", Default: 90, Desc: "Account age in days required for supporting_trunk"},
	{Name: "trunk_min_health", Default: "75", Desc: "Health score required for supporting_trunk"},
	{Name: "trunk_min_depth", Default: 3, Desc: "Depth below the user required for supporting_trunk"},
	{Name: "trunk_min_size", Default: 10, Desc: "Subtree size required for supporting_trunk"},

	// Invite quota
	{Name: "default_invite_quota", Default: 5, Desc: "Invite quota given to new users"},
	{Name: "quota_grant_max", Default: 50, Desc: "Quota adjustment never raises a quota past this"},

	// Tree API
	{Name: "tree_default_max_depth", Default: 5, Desc: "Depth limit for tree reads when the request gives none (-1 = unlimited)"},
	{Name: "api_rate_limit", Default: 600, Desc: "API requests per minute per client IP (0 = unlimited)"},

	// Prune
	{Name: "prune_require_transactions", Default: true, Desc: "Refuse to prune on deployments without transactions"},

	// Audit
	{Name: "audit_log_mirror", Default: true, Desc: "Also write audit entries to the application log"},

	// Background jobs
	{Name: "jobs_enabled", Default: true, Desc: "Run background health and quota jobs"},
	{Name: "health_job_interval", Default: "24h", Desc: "Interval of the health scoring job (e.g., 24h, 6h)"},
	{Name: "quota_job_interval", Default: "24h", Desc: "Interval of the quota adjustment job"},

	// Timeouts
	{Name: "prune_timeout", Default: "60s", Desc: "Deadline for one prune or rollback transaction"},
	{Name: "job_timeout", Default: "30m", Desc: "Deadline for one background job run"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, INVITETREE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "INVITETREE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg, err := AppConfigFrom(ConfigValues{
		String:   appValues.String,
		Int:      appValues.Int,
		Bool:     appValues.Bool,
		Duration: appValues.Duration,
	})
	if err != nil {
		return nil, AppConfig{}, err
	}

	if !appCfg.PruneRequireTransactions {
		logger.Warn("prune_require_transactions is off; prune and rollback may leave partial writes on failure")
	}

	return coreCfg, appCfg, nil
}

// ConfigKeys returns a copy of the app key table so other loaders
// (invitetreectl) read the same names and defaults as the service.
func ConfigKeys() []config.AppKey {
	return append([]config.AppKey(nil), appConfigKeys...)
}

// ConfigValues reads loaded values by key name.
type ConfigValues struct {
	String   func(name string) string
	Int      func(name string) int
	Bool     func(name string) bool
	Duration func(name string, def time.Duration) time.Duration
}

// AppConfigFrom maps the key table onto AppConfig.
func AppConfigFrom(v ConfigValues) (AppConfig, error) {
	lowThreshold, err := parseFloat("health_low_threshold", v.String("health_low_threshold"))
	if err != nil {
		return AppConfig{}, err
	}
	trunkHealth, err := parseFloat("trunk_min_health", v.String("trunk_min_health"))
	if err != nil {
		return AppConfig{}, err
	}

	return AppConfig{
		MongoURI:         v.String("mongo_uri"),
		MongoDatabase:    v.String("mongo_database"),
		MongoMaxPoolSize: uint64(v.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(v.Int("mongo_min_pool_size")),

		HealthLowThreshold: lowThreshold,
		TrunkMinDays:       v.Int("trunk_min_days"),
		TrunkMinHealth:     trunkHealth,
		TrunkMinDepth:      v.Int("trunk_min_depth"),
		TrunkMinSize:       v.Int("trunk_min_size"),

		DefaultInviteQuota: v.Int("default_invite_quota"),
		QuotaGrantMax:      v.Int("quota_grant_max"),

		TreeDefaultMaxDepth: v.Int("tree_default_max_depth"),
		APIRateLimit:        v.Int("api_rate_limit"),

		PruneRequireTransactions: v.Bool("prune_require_transactions"),
		AuditLogMirror:           v.Bool("audit_log_mirror"),

		JobsEnabled:       v.Bool("jobs_enabled"),
		HealthJobInterval: v.Duration("health_job_interval", 24*time.Hour),
		QuotaJobInterval:  v.Duration("quota_job_interval", 24*time.Hour),

		PruneTimeout: v.Duration("prune_timeout", timeouts.DefaultLong),
		JobTimeout:   v.Duration("job_timeout", timeouts.DefaultBatch),
	}, nil
}

func parseFloat(key, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return v, nil
}

// HealthConfig returns the scoring thresholds carried by appCfg.
func (c AppConfig) HealthConfig() health.Config {
	return health.Config{
		LowThreshold:   c.HealthLowThreshold,
		TrunkMinDays:   c.TrunkMinDays,
		TrunkMinHealth: c.TrunkMinHealth,
		TrunkMinDepth:  c.TrunkMinDepth,
		TrunkMinSize:   c.TrunkMinSize,
	}
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI format is checked before any connection attempt, and the
// numeric thresholds are range-checked so a typo fails startup instead of
// silently flagging the whole population.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	if err := appCfg.HealthConfig().Validate(); err != nil {
		return err
	}

	if appCfg.DefaultInviteQuota < 0 {
		return fmt.Errorf("default_invite_quota must be >= 0")
	}
	if appCfg.QuotaGrantMax < appCfg.DefaultInviteQuota {
		return fmt.Errorf("quota_grant_max (%d) is below default_invite_quota (%d)",
			appCfg.QuotaGrantMax, appCfg.DefaultInviteQuota)
	}
	if appCfg.TreeDefaultMaxDepth < tree.NoLimit {
		return fmt.Errorf("tree_default_max_depth must be >= -1")
	}
	if appCfg.PruneTimeout <= 0 || appCfg.JobTimeout <= 0 {
		return fmt.Errorf("prune_timeout and job_timeout must be positive")
	}
	if appCfg.APIRateLimit < 0 {
		return fmt.Errorf("api_rate_limit must be >= 0")
	}
	if appCfg.JobsEnabled && (appCfg.HealthJobInterval <= 0 || appCfg.QuotaJobInterval <= 0) {
		return fmt.Errorf("job intervals must be positive when jobs_enabled is set")
	}

	return nil
}
