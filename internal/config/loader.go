// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/pkg/store"
)

// Load reads configuration from environment variables and validates it.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	// In production (Docker/K8s), environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration.
func (c *Config) Validate() error {
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT: %d (must be 1-65535)", c.GRPCPort)
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (must be 1-65535)", c.MetricsPort)
	}
	if c.MetricsEndpoint == "" || c.MetricsEndpoint[0] != '/' {
		return fmt.Errorf("invalid METRICS_ENDPOINT: %q (must start with /)", c.MetricsEndpoint)
	}

	switch store.Backend(c.StoreBackend) {
	case store.BackendRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis backend")
		}
	case store.BackendBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt backend")
		}
	case store.BackendSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the sql backend")
		}
	case store.BackendMemory:
		logrus.Warn("memory store selected: player data is lost on restart")
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q", c.StoreBackend)
	}

	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if c.CommandRate < 0 {
		return fmt.Errorf("invalid COMMAND_RATE: %v (must not be negative)", c.CommandRate)
	}
	if c.EngineConfig == "" {
		return fmt.Errorf("ENGINE_CONFIG is required")
	}
	if c.DecayPeriod < 0 {
		return fmt.Errorf("invalid DECAY_PERIOD: %s (must not be negative)", c.DecayPeriod)
	}
	if c.LockStripes < 1 || c.ArenaSize < 1 {
		return fmt.Errorf("LOCK_STRIPES and ARENA_SIZE must be positive")
	}

	return nil
}

// StoreOptions maps the store settings onto store.Open options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:        store.Backend(c.StoreBackend),
		RedisAddr:      c.RedisAddr(),
		RedisPassword:  c.RedisPassword,
		RedisDB:        c.RedisDB,
		RedisKeyPrefix: c.RedisKeyPrefix,
		RedisTTL:       c.RedisTTL,
		MaxRetries:     c.StoreMaxRetries,
		BoltPath:       c.BoltPath,
		DatabaseURL:    c.DatabaseURL,
	}
}
