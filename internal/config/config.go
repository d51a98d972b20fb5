// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "time"

// Config holds all service configuration loaded from environment variables.
// This struct uses github.com/caarlos0/env for automatic environment variable parsing.
//
// Rule behaviour lives in the engine config (ENGINE_CONFIG); this struct only
// covers how the process runs and what it connects to.
type Config struct {
	// ============================================================
	// Server configuration
	// ============================================================
	GRPCPort        int    `env:"GRPC_PORT" envDefault:"6565"`
	MetricsPort     int    `env:"METRICS_PORT" envDefault:"8080"`
	MetricsEndpoint string `env:"METRICS_ENDPOINT" envDefault:"/metrics"`
	Environment     string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName     string `env:"SERVICE_NAME" envDefault:"chatguard"`

	// ============================================================
	// Logging
	// ============================================================
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON       bool   `env:"LOG_JSON" envDefault:"true"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`

	// ============================================================
	// Player data store
	// ============================================================
	StoreBackend string `env:"STORE_BACKEND" envDefault:"redis"`

	RedisHost       string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix  string        `env:"REDIS_KEY_PREFIX" envDefault:"chatguard:"`
	RedisTTL        time.Duration `env:"REDIS_TTL" envDefault:"720h"`
	StoreMaxRetries uint64        `env:"STORE_MAX_RETRIES" envDefault:"5"`

	BoltPath    string `env:"BOLT_PATH" envDefault:"data/chatguard.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// ============================================================
	// Messaging
	// ============================================================
	NATSURL        string  `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSMaxRetries uint64  `env:"NATS_MAX_RETRIES" envDefault:"5"`
	CommandRate    float64 `env:"COMMAND_RATE" envDefault:"50"`
	CommandBurst   int     `env:"COMMAND_BURST" envDefault:"100"`

	// ============================================================
	// Engine
	// ============================================================
	EngineConfig string        `env:"ENGINE_CONFIG" envDefault:"config/engine.yaml"`
	DecayPeriod  time.Duration `env:"DECAY_PERIOD"`
	LockStripes  int           `env:"LOCK_STRIPES" envDefault:"256"`
	ArenaSize    int           `env:"ARENA_SIZE" envDefault:"100000"`
	ArenaTTL     time.Duration `env:"ARENA_TTL" envDefault:"1h"`

	// ============================================================
	// Telemetry configuration
	// ============================================================
	ZipkinEndpoint string `env:"OTEL_EXPORTER_ZIPKIN_ENDPOINT"`
}

// RedisAddr returns host:port.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
