// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers the framework-level settings (ports, TLS,
// logging, CORS). AppConfig carries everything specific to the invite tree:
// the MongoDB connection, the health and maturity thresholds, invite quota
// policy, prune safety, and background job schedules.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Health scoring and maturity thresholds
	HealthLowThreshold float64 // users scoring below this are flagged
	TrunkMinDays       int     // account age for supporting_trunk
	TrunkMinHealth     float64 // score for supporting_trunk
	TrunkMinDepth      int     // max depth below for supporting_trunk
	TrunkMinSize       int     // subtree size for supporting_trunk

	// Invite quota policy
	DefaultInviteQuota int
	QuotaGrantMax      int

	// Tree API
	TreeDefaultMaxDepth int
	APIRateLimit        int // requests per minute per client IP; 0 disables

	// Prune safety: refuse to prune without multi-document transactions
	PruneRequireTransactions bool

	// Mirror audit entries to the application log
	AuditLogMirror bool

	// Background jobs
	JobsEnabled       bool
	HealthJobInterval time.Duration
	QuotaJobInterval  time.Duration

	// Deadlines for prune/rollback transactions and for one job run
	PruneTimeout time.Duration
	JobTimeout   time.Duration
}
