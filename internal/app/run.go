// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Run starts the servers and blocks until a shutdown signal is received.
// SIGHUP reloads the engine config without restarting.
func (a *App) Run(ctx context.Context) error {
	if err := a.grpcServer.Start(ctx); err != nil {
		return err
	}
	if err := a.metricsServer.Start(ctx); err != nil {
		return err
	}

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.manager.Watch(ctx, reload)

	logrus.Info("application started successfully")

	<-ctx.Done()

	logrus.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all application components.
//
// ============================================================
// Shutdown order
// ============================================================
// 1. Stop accepting requests (gRPC + metrics servers)
// 2. Drain NATS so in-flight evaluations finish
// 3. Stop background work (decay, probes) and close the store
// 4. Flush telemetry, then the log file
//
// Errors are logged and the sequence continues.
// ============================================================
func (a *App) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down application...")

	if a.grpcServer != nil {
		if err := a.grpcServer.Shutdown(ctx); err != nil {
			logrus.Errorf("gRPC server shutdown error: %v", err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			logrus.Errorf("metrics server shutdown error: %v", err)
		}
	}

	if a.nats != nil {
		a.nats.Close()
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logrus.Errorf("store close error: %v", err)
		}
	}

	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			logrus.Errorf("telemetry shutdown error: %v", err)
		}
	}

	logrus.Info("application shutdown complete")

	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return nil
}
