// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package store persists per-player key-value data such as warning points
// and mute deadlines. Backends: Redis, bbolt, SQL (SQLite/PostgreSQL) and memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// PlayerDataStore reads and writes player data. Setting an empty value deletes the key.
type PlayerDataStore interface {
	Get(ctx context.Context, player, key string) (string, bool, error)
	Set(ctx context.Context, player, key, value string) error
}

// PlayerLister lists players that have data.
type PlayerLister interface {
	Players(ctx context.Context) ([]string, error)
}

// Store is a complete backend.
type Store interface {
	PlayerDataStore
	PlayerLister
	Check(ctx context.Context) error
	Close() error
}

// Backend names a store implementation.
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendBolt   Backend = "bolt"
	BackendSQL    Backend = "sql"
	BackendMemory Backend = "memory"
)

var (
	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")

	// ErrEmptyPlayer indicates a call without a player id.
	ErrEmptyPlayer = errors.New("empty player id")
)

// Options configures Open.
type Options struct {
	Backend Backend

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	RedisTTL       time.Duration
	MaxRetries     uint64

	BoltPath    string
	DatabaseURL string
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	logrus.Infof("opening %s player data store", opts.Backend)

	switch opts.Backend {
	case BackendRedis:
		client, err := NewRedisClient(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.MaxRetries)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, opts.RedisKeyPrefix, opts.RedisTTL), nil
	case BackendBolt:
		return OpenBolt(opts.BoltPath)
	case BackendSQL:
		return OpenSQL(ctx, opts.DatabaseURL, opts.MaxRetries)
	case BackendMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

// Bag binds a store to one player for the rule interpreter.
type Bag struct {
	store  PlayerDataStore
	player string
}

// NewBag creates a player-bound view of store.
func NewBag(store PlayerDataStore, player string) *Bag {
	return &Bag{store: store, player: player}
}

func (b *Bag) Get(ctx context.Context, key string) (string, bool, error) {
	return b.store.Get(ctx, b.player, key)
}

func (b *Bag) Set(ctx context.Context, key, value string) error {
	return b.store.Set(ctx, b.player, key, value)
}

func checkPlayer(player string) error {
	if player == "" {
		return ErrEmptyPlayer
	}
	return nil
}
