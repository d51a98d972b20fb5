package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/pipeline"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/store"
)

const defaultEngineConfig = "config/engine.yaml"

// newLintCommand loads an engine config and its rule files without starting anything.
func newLintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [engine.yaml]",
		Short: "Validate an engine config and its rule files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultEngineConfig
			if len(args) == 1 {
				path = args[0]
			}

			snap, err := pipeline.Load(path)
			if err != nil {
				var loadErr *rule.LoadError
				if errors.As(err, &loadErr) {
					return fmt.Errorf("invalid rules: %s", loadErr.Error())
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", path)
			fmt.Fprintf(out, "  groups: %d\n", snap.Groups.Count())
			fmt.Fprintf(out, "  warning sets: %d\n", len(snap.WarningSets))
			for _, category := range rule.Categories() {
				if n := snap.RuleCount(category); n > 0 {
					fmt.Fprintf(out, "  %s rules: %d\n", category, n)
				}
			}
			return nil
		},
	}
}

type checkOptions struct {
	engine      string
	category    string
	player      string
	name        string
	permissions []string
	joined      time.Duration
	vars        map[string]string
}

// newCheckCommand evaluates messages in order against an in-memory store, so
// later messages see the antispam history and warning points of earlier ones.
func newCheckCommand() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <message>...",
		Short: "Evaluate messages and print their verdicts as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.engine, "engine", "e", defaultEngineConfig, "engine config file")
	flags.StringVarP(&opts.category, "category", "c", string(rule.CategoryChat), "message category")
	flags.StringVarP(&opts.player, "player", "p", "00000000-0000-0000-0000-000000000001", "sender id")
	flags.StringVarP(&opts.name, "name", "n", "Steve", "sender name")
	flags.StringSliceVar(&opts.permissions, "perm", nil, "granted permissions")
	flags.DurationVar(&opts.joined, "joined", 24*time.Hour, "how long ago the sender joined")
	flags.StringToStringVar(&opts.vars, "var", nil, "extra variables (key=value)")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *checkOptions, messages []string) error {
	logrus.SetLevel(logrus.WarnLevel)

	category, err := rule.ParseCategory(opts.category)
	if err != nil {
		return err
	}

	snap, err := pipeline.Load(opts.engine)
	if err != nil {
		return err
	}

	c := checker.New(store.NewMemoryStore(), snap, checker.Options{LockStripes: 1, ArenaSize: 16})
	sender := &checker.SenderRef{
		PlayerID:    opts.player,
		PlayerName:  opts.name,
		Permissions: opts.permissions,
		Joined:      time.Now().Add(-opts.joined),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, text := range messages {
		verdict, err := c.Evaluate(ctx, checker.Request{
			Category: category,
			Sender:   sender,
			Text:     text,
			Vars:     opts.vars,
		})
		if err != nil {
			return err
		}
		if err := enc.Encode(verdict); err != nil {
			return err
		}
	}
	return nil
}
