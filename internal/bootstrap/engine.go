// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-chat-moderation/internal/config"
	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/pipeline"
	"github.com/AccelByte/extend-chat-moderation/pkg/store"
)

// InitStore opens the configured player data store.
func InitStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	s, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	if err := s.Check(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s store is not healthy: %w", cfg.StoreBackend, err)
	}
	return s, nil
}

// InitEngine creates the checker and loads the engine config into it.
//
// ============================================================
// Engine initialization order
// ============================================================
// 1. Checker with an empty snapshot (lets everything through)
// 2. Manager loads ENGINE_CONFIG and the rule files; a LoadError
//    here is fatal at startup but only logged on later reloads
// 3. Warning point ledger is seeded from stored players
// 4. Decay ticker starts; DECAY_PERIOD overrides decay_period
// ============================================================
func InitEngine(ctx context.Context, cfg *config.Config, data store.Store) (*checker.Checker, *pipeline.Manager, error) {
	c := checker.New(data, nil, checker.Options{
		LockStripes: cfg.LockStripes,
		ArenaSize:   cfg.ArenaSize,
		ArenaTTL:    cfg.ArenaTTL,
	})

	manager := pipeline.NewManager(cfg.EngineConfig, c)
	generation, err := manager.Reload()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load engine config from %s: %w", cfg.EngineConfig, err)
	}

	snap := c.Snapshot()
	logrus.Infof("engine config generation %d: %d groups, %d warning sets", generation, snap.Groups.Count(), len(snap.WarningSets))

	if err := c.SeedLedger(ctx); err != nil {
		logrus.Warnf("could not seed warning ledger, decay starts with new players only: %v", err)
	}

	c.StartDecay(ctx, DecayPeriod(cfg, manager.Config()))

	return c, manager, nil
}

// DecayPeriod picks the environment override or the engine config value.
func DecayPeriod(cfg *config.Config, engine *pipeline.Config) time.Duration {
	if cfg.DecayPeriod > 0 {
		return cfg.DecayPeriod
	}
	if engine != nil {
		return engine.DecayPeriod
	}
	return 0
}
