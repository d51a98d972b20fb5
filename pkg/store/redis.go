// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTTL is how long an idle player's data is kept in Redis (30 days).
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultKeyPrefix prefixes every player hash.
	DefaultKeyPrefix = "chatguard:player:"
	// DefaultMaxRetries bounds connection attempts.
	DefaultMaxRetries = 5

	scanBatch = 500
)

// NewRedisClient connects to Redis, retrying with exponential backoff.
func NewRedisClient(ctx context.Context, addr, password string, db int, maxRetries uint64) (*redis.Client, error) {
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	err := backoff.Retry(
		func() error {
			_, err := client.Ping(ctx).Result()
			if err != nil {
				logrus.Warnf("Redis connection failed: %v, retrying...", err)
				return err
			}
			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logrus.Infof("connected to Redis at %s", addr)
	return client, nil
}

// RedisStore keeps each player's data in one hash whose TTL is refreshed on write.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	health *HealthChecker
}

// NewRedisStore creates a store on client. Empty prefix and zero ttl use the defaults.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		health: NewHealthChecker(client),
	}
}

// makeKey creates the Redis key for a player.
func (s *RedisStore) makeKey(player string) string {
	return s.prefix + player
}

func (s *RedisStore) Get(ctx context.Context, player, key string) (string, bool, error) {
	if err := checkPlayer(player); err != nil {
		return "", false, err
	}

	value, err := s.client.HGet(ctx, s.makeKey(player), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		logrus.Errorf("failed to get %s for player %s: %v", key, player, err)
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, player, key, value string) error {
	if err := checkPlayer(player); err != nil {
		return err
	}
	redisKey := s.makeKey(player)

	if value == "" {
		if err := s.client.HDel(ctx, redisKey, key).Err(); err != nil {
			logrus.Errorf("failed to delete %s for player %s: %v", key, player, err)
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey, key, value)
		pipe.Expire(ctx, redisKey, s.ttl)
		return nil
	})
	if err != nil {
		logrus.Errorf("failed to set %s for player %s: %v", key, player, err)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	logrus.Debugf("set %s for player %s with TTL %v", key, player, s.ttl)
	return nil
}

// Players scans for player hashes.
func (s *RedisStore) Players(ctx context.Context) ([]string, error) {
	var (
		players []string
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan players: %w", err)
		}
		for _, k := range keys {
			players = append(players, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	sort.Strings(players)
	return players, nil
}

func (s *RedisStore) Check(ctx context.Context) error {
	return s.health.Check(ctx)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
