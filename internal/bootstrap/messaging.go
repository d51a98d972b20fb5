// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-chat-moderation/internal/config"
	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/messaging"
)

// InitMessaging connects to NATS and starts answering evaluation requests.
func InitMessaging(ctx context.Context, cfg *config.Config, c *checker.Checker) (*messaging.NATSClient, error) {
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = cfg.ServiceName
	natsConfig.ConnectRetries = cfg.NATSMaxRetries

	client, err := messaging.NewNATSClient(ctx, natsConfig)
	if err != nil {
		return nil, err
	}

	handler := messaging.NewEvaluateHandler(c, client, messaging.HandlerConfig{
		CommandRate:  cfg.CommandRate,
		CommandBurst: cfg.CommandBurst,
	})
	if err := client.ServeEvaluate(ctx, handler); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to serve evaluations: %w", err)
	}

	return client, nil
}
