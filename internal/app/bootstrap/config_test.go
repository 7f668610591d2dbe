package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestValidateConfig_Defaults(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.MongoMaxPoolSize = 100
	cfg.MongoMinPoolSize = 10
	cfg.JobsEnabled = true
	cfg.HealthJobInterval = 24 * time.Hour
	cfg.QuotaJobInterval = 24 * time.Hour

	if err := ValidateConfig(nil, cfg, zap.NewNop()); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad uri", func(c *AppConfig) { c.MongoURI = "http://nope" }},
		{"no database", func(c *AppConfig) { c.MongoDatabase = "" }},
		{"pool sizes inverted", func(c *AppConfig) { c.MongoMinPoolSize = 200 }},
		{"threshold above 100", func(c *AppConfig) { c.HealthLowThreshold = 120 }},
		{"negative trunk size", func(c *AppConfig) { c.TrunkMinSize = -1 }},
		{"negative default quota", func(c *AppConfig) { c.DefaultInviteQuota = -1 }},
		{"grant max below default", func(c *AppConfig) { c.QuotaGrantMax = 1 }},
		{"max depth below -1", func(c *AppConfig) { c.TreeDefaultMaxDepth = -2 }},
		{"negative rate limit", func(c *AppConfig) { c.APIRateLimit = -1 }},
		{"zero prune timeout", func(c *AppConfig) { c.PruneTimeout = 0 }},
		{"zero job interval", func(c *AppConfig) { c.HealthJobInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig()
			cfg.MongoMaxPoolSize = 100
			cfg.JobsEnabled = true
			cfg.HealthJobInterval = time.Hour
			cfg.QuotaJobInterval = time.Hour
			tt.mutate(&cfg)

			if err := ValidateConfig(nil, cfg, zap.NewNop()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	if v, err := parseFloat("k", "62.5"); err != nil || v != 62.5 {
		t.Errorf("parseFloat = %v, %v", v, err)
	}
	if _, err := parseFloat("k", "fifty"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestHealthConfig(t *testing.T) {
	cfg := DefaultAppConfig()
	hc := cfg.HealthConfig()
	if hc.LowThreshold != 50 || hc.TrunkMinHealth != 75 || hc.TrunkMinSize != 10 {
		t.Errorf("unexpected health config: %+v", hc)
	}
}
