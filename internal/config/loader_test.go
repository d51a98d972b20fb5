package config

import (
	"strings"
	"testing"
	"time"

	"github.com/AccelByte/extend-chat-moderation/pkg/store"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("DECAY_PERIOD", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GRPCPort != 6565 || cfg.MetricsPort != 8080 || cfg.MetricsEndpoint != "/metrics" {
		t.Errorf("Unexpected server defaults: %+v", cfg)
	}
	if cfg.EngineConfig != "config/engine.yaml" {
		t.Errorf("Unexpected engine config path %q", cfg.EngineConfig)
	}
	if cfg.DecayPeriod != 10*time.Minute {
		t.Errorf("Expected decay period 10m, got %s", cfg.DecayPeriod)
	}

	opts := cfg.StoreOptions()
	if opts.Backend != store.BackendBolt || opts.BoltPath != "data/chatguard.db" {
		t.Errorf("Unexpected store options %+v", opts)
	}
	if opts.RedisAddr != "localhost:6379" || opts.RedisTTL != 720*time.Hour {
		t.Errorf("Unexpected redis options %+v", opts)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GRPCPort:        6565,
			MetricsPort:     8080,
			MetricsEndpoint: "/metrics",
			StoreBackend:    "redis",
			RedisHost:       "localhost",
			NATSURL:         "nats://localhost:4222",
			EngineConfig:    "config/engine.yaml",
			LockStripes:     16,
			ArenaSize:       100,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"grpc port", func(c *Config) { c.GRPCPort = 0 }, "GRPC_PORT"},
		{"metrics port", func(c *Config) { c.MetricsPort = 70000 }, "METRICS_PORT"},
		{"metrics endpoint", func(c *Config) { c.MetricsEndpoint = "metrics" }, "METRICS_ENDPOINT"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "etcd" }, "STORE_BACKEND"},
		{"sql without url", func(c *Config) { c.StoreBackend = "sql" }, "DATABASE_URL"},
		{"bolt without path", func(c *Config) { c.StoreBackend = "bolt" }, "BOLT_PATH"},
		{"memory backend", func(c *Config) { c.StoreBackend = "memory" }, ""},
		{"negative command rate", func(c *Config) { c.CommandRate = -1 }, "COMMAND_RATE"},
		{"negative decay", func(c *Config) { c.DecayPeriod = -time.Second }, "DECAY_PERIOD"},
		{"no stripes", func(c *Config) { c.LockStripes = 0 }, "LOCK_STRIPES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()

			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}
