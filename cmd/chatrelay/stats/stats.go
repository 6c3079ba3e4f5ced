// Package statscmder provides the stats command.
package statscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/client"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

type statsCommander struct {
	target string
	json   bool
}

const statsLongDesc string = `Show the visit and API call counters of a running chat relay.

Totals include the baseline carried over from before the counting start
date. The daily breakdown covers the last seven days.

Examples:
  chatrelay stats
  chatrelay stats --target http://relay.internal:5000 --json`

const statsShortDesc string = "Show usage counters"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("target") {
				return nil
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.target = cfg.Client.Target
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.target, "target", "t", defaults.Client.Target, "Chat relay URL")
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the counters as JSON")

	return cmd
}

func (c *statsCommander) run(ctx context.Context, out io.Writer) error {
	snap, err := client.New(c.target, nil).Stats(ctx)
	if err != nil {
		return err
	}

	if c.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintln(out)
	cliui.WriteStats(out, *snap)
	fmt.Fprintln(out)
	return nil
}
