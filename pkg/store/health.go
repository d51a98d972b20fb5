// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const healthTimeout = 2 * time.Second

// HealthChecker pings Redis.
type HealthChecker struct {
	client *redis.Client
}

// NewHealthChecker creates a health checker for client.
func NewHealthChecker(client *redis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

// Check pings Redis with a short timeout.
func (h *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	_, err := h.client.Ping(ctx).Result()
	if err != nil {
		logrus.Errorf("Redis health check failed: %v", err)
		return err
	}

	logrus.Debugf("Redis health check passed")
	return nil
}

// IsHealthy reports whether a store answers its health check.
func IsHealthy(ctx context.Context, s Store) bool {
	return s.Check(ctx) == nil
}
