// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AccelByte/extend-chat-moderation/internal/app"
	"github.com/AccelByte/extend-chat-moderation/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "chatguard",
	Short: "Chat moderation engine",
	Long: `chatguard evaluates chat messages, commands, signs, books and mail
against rule files and antispam checks, and answers with a verdict over NATS.

Without a subcommand it runs the service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the moderation service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newLintCommand())
	rootCmd.AddCommand(newCheckCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logrus.Infof("starting app server..")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
