// Command invitetreectl is the operator tool for the invite tree: it
// inspects branches, recomputes health scores, registers invites, and runs
// prune and rollback.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dalemusser/invitetree/internal/app/bootstrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const envPrefix = "INVITETREE"

var (
	configFile string
	jsonOutput bool
	verbose    bool
	allowNoTxn bool

	// settings resolves the service's key table: flags > INVITETREE_* env >
	// config file > defaults.
	settings = newSettings()

	rootCmd = &cobra.Command{
		Use:           "invitetreectl",
		Short:         "Inspect and maintain the invite tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func newSettings() *viper.Viper {
	v := viper.New()
	for _, k := range bootstrap.ConfigKeys() {
		v.SetDefault(k.Name, k.Default)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (yaml, json or toml) using the service's keys")
	pf.String("mongo-uri", "", "MongoDB connection URI")
	pf.String("db", "", "MongoDB database name")
	pf.BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	pf.BoolVar(&allowNoTxn, "allow-no-txn", false, "Allow prune and rollback without transactions (standalone dev servers)")

	_ = settings.BindPFlag("mongo_uri", pf.Lookup("mongo-uri"))
	_ = settings.BindPFlag("mongo_database", pf.Lookup("db"))

	rootCmd.AddCommand(
		newTreeCmd(),
		newAncestorsCmd(),
		newStatsCmd(),
		newInviteesCmd(),
		newScoreCmd(),
		newRecalcCmd(),
		newFlagLowCmd(),
		newInviteCmd(),
		newStatusCmd(),
		newQuotaAdjustCmd(),
		newPruneCmd(),
		newAuditCmd(),
	)
}

// session is an open database connection plus the wired services.
type session struct {
	client *mongo.Client
	svc    *bootstrap.Services
	log    *zap.Logger
}

func (s *session) Close() {
	_ = s.client.Disconnect(context.Background())
	_ = s.log.Sync()
}

func connect(ctx context.Context) (*session, error) {
	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = l
	}

	cfg, err := loadAppConfig(settings, configFile)
	if err != nil {
		return nil, usageError{err.Error()}
	}

	client, db, err := bootstrap.OpenMongo(ctx, bootstrap.MongoOptions{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: cfg.MongoMaxPoolSize,
		MinPoolSize: cfg.MongoMinPoolSize,
	})
	if err != nil {
		return nil, err
	}

	return &session{client: client, svc: bootstrap.NewServices(db, cfg, log), log: log}, nil
}

// loadAppConfig reads the key table from v (and file, when set) into the
// same AppConfig the service builds, then applies the CLI switches.
func loadAppConfig(v *viper.Viper, file string) (bootstrap.AppConfig, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return bootstrap.AppConfig{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg, err := bootstrap.AppConfigFrom(bootstrap.ConfigValues{
		String: v.GetString,
		Int:    v.GetInt,
		Bool:   v.GetBool,
		Duration: func(name string, def time.Duration) time.Duration {
			if d := v.GetDuration(name); d > 0 {
				return d
			}
			return def
		},
	})
	if err != nil {
		return bootstrap.AppConfig{}, err
	}
	if err := bootstrap.ValidateConfig(nil, cfg, zap.NewNop()); err != nil {
		return bootstrap.AppConfig{}, err
	}

	if allowNoTxn {
		cfg.PruneRequireTransactions = false
	}
	// The CLI reports its own results; mirroring would duplicate them.
	cfg.AuditLogMirror = cfg.AuditLogMirror && verbose
	return cfg, nil
}

// withSession adapts a command body that needs the database.
func withSession(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, s, args)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			os.Exit(exitUsage)
		}
		os.Exit(exitError)
	}
	os.Exit(exitOK)
}
