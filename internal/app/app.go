// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/internal/bootstrap"
	"github.com/AccelByte/extend-chat-moderation/internal/config"
	"github.com/AccelByte/extend-chat-moderation/internal/server"
	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/common"
	"github.com/AccelByte/extend-chat-moderation/pkg/messaging"
	"github.com/AccelByte/extend-chat-moderation/pkg/pipeline"
	"github.com/AccelByte/extend-chat-moderation/pkg/store"
)

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	logFile           io.Closer
	store             store.Store
	checker           *checker.Checker
	manager           *pipeline.Manager
	nats              *messaging.NATSClient
	grpcServer        *server.GRPCServer
	metricsServer     *server.MetricsServer
	shutdownTelemetry func(context.Context) error
	cancel            context.CancelFunc
}

// New creates and initializes a new application instance.
//
// ============================================================
// Application initialization order
// ============================================================
// 1. Logging (level, format, optional rotated file)
// 2. Player data store (redis, bolt, sql or memory)
// 3. Engine: checker, engine config, ledger seed, decay ticker
// 4. NATS evaluation subscription
// 5. Servers (gRPC health, metrics)
// 6. Telemetry (OpenTelemetry tracing)
// ============================================================
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logFile, err := common.SetupLogging(common.LogOptions{
		Level:      cfg.LogLevel,
		JSON:       cfg.LogJSON,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	logrus.Info("initializing application...")

	// Background work (decay, health probes, NATS) lives until Shutdown.
	ctx, cancel := context.WithCancel(ctx)
	app := &App{cfg: cfg, logFile: logFile, cancel: cancel}

	if err := app.init(ctx); err != nil {
		app.Shutdown(context.Background())
		return nil, err
	}

	logrus.Info("application initialized successfully")
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	data, err := bootstrap.InitStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.store = data
	logrus.Infof("%s player data store ready", cfg.StoreBackend)

	a.checker, a.manager, err = bootstrap.InitEngine(ctx, cfg, data)
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	a.nats, err = bootstrap.InitMessaging(ctx, cfg, a.checker)
	if err != nil {
		return fmt.Errorf("failed to init messaging: %w", err)
	}

	a.grpcServer = server.NewGRPCServer(cfg.GRPCPort)
	a.grpcServer.AddProbe("store", func(ctx context.Context) bool {
		return store.IsHealthy(ctx, a.store)
	})
	a.grpcServer.AddProbe("nats", func(context.Context) bool {
		return a.nats.Connected()
	})
	if err := a.grpcServer.Setup(); err != nil {
		return fmt.Errorf("failed to setup gRPC server: %w", err)
	}

	a.metricsServer = server.NewMetricsServer(cfg.MetricsPort, cfg.MetricsEndpoint)
	if err := a.metricsServer.Setup(); err != nil {
		return fmt.Errorf("failed to setup metrics server: %w", err)
	}

	a.shutdownTelemetry, err = server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, 0, cfg.ZipkinEndpoint)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	return nil
}
