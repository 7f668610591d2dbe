package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dalemusser/invitetree/internal/app/bootstrap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// lazyDB returns a database handle without contacting a server; wiring
// services only creates collection handles.
func lazyDB(t *testing.T) *mongo.Database {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("invitetreectl_config")
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	cfg, err := loadAppConfig(newSettings(), "")
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	if cfg.HealthLowThreshold != 50 || cfg.TrunkMinDays != 90 {
		t.Errorf("defaults = %v/%v, want 50/90", cfg.HealthLowThreshold, cfg.TrunkMinDays)
	}
	if !cfg.PruneRequireTransactions {
		t.Error("prune_require_transactions should default on")
	}
	if cfg.PruneTimeout != time.Minute {
		t.Errorf("PruneTimeout = %v, want 1m", cfg.PruneTimeout)
	}
}

func TestLoadAppConfig_EnvReachesHealthEngine(t *testing.T) {
	t.Setenv("INVITETREE_HEALTH_LOW_THRESHOLD", "35.5")
	t.Setenv("INVITETREE_TRUNK_MIN_DAYS", "30")
	t.Setenv("INVITETREE_MONGO_DATABASE", "elsewhere")

	cfg, err := loadAppConfig(newSettings(), "")
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	if cfg.MongoDatabase != "elsewhere" {
		t.Errorf("MongoDatabase = %q", cfg.MongoDatabase)
	}

	svc := bootstrap.NewServices(lazyDB(t), cfg, zap.NewNop())
	hc := svc.Health.Config()
	if hc.LowThreshold != 35.5 {
		t.Errorf("LowThreshold = %v, want 35.5", hc.LowThreshold)
	}
	if hc.TrunkMinDays != 30 {
		t.Errorf("TrunkMinDays = %v, want 30", hc.TrunkMinDays)
	}
}

func TestLoadAppConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invitetree.yaml")
	body := "health_low_threshold: \"42\"\ntrunk_min_size: 4\nprune_timeout: 2m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INVITETREE_TRUNK_MIN_SIZE", "7")

	cfg, err := loadAppConfig(newSettings(), path)
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	if cfg.HealthLowThreshold != 42 {
		t.Errorf("HealthLowThreshold = %v, want 42", cfg.HealthLowThreshold)
	}
	if cfg.TrunkMinSize != 7 {
		t.Errorf("TrunkMinSize = %v, want env value 7", cfg.TrunkMinSize)
	}
	if cfg.PruneTimeout != 2*time.Minute {
		t.Errorf("PruneTimeout = %v, want 2m", cfg.PruneTimeout)
	}
}

func TestLoadAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"threshold not a number", "INVITETREE_HEALTH_LOW_THRESHOLD", "low"},
		{"threshold out of range", "INVITETREE_HEALTH_LOW_THRESHOLD", "140"},
		{"bad uri", "INVITETREE_MONGO_URI", "http://nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := loadAppConfig(newSettings(), ""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadAppConfig_AllowNoTxn(t *testing.T) {
	allowNoTxn = true
	t.Cleanup(func() { allowNoTxn = false })

	cfg, err := loadAppConfig(newSettings(), "")
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	if cfg.PruneRequireTransactions {
		t.Error("--allow-no-txn should clear prune_require_transactions")
	}
}
