// Package newscmder provides the news command.
package newscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/client"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/news"
)

type newsCommander struct {
	target string
	json   bool
}

const newsLongDesc string = `Show the latest news from a running chat relay.

The relay asks its bot for the news and caches the list for a few minutes,
so repeated calls are cheap.

Examples:
  chatrelay news
  chatrelay news --json`

const newsShortDesc string = "Show the latest news"

func NewNewsCmd() *cobra.Command {
	cmder := &newsCommander{}

	cmd := &cobra.Command{
		Use:   "news",
		Short: newsShortDesc,
		Long:  newsLongDesc,
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
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the news list as JSON")

	return cmd
}

func (c *newsCommander) run(ctx context.Context, out io.Writer) error {
	cl := client.New(c.target, nil)

	if c.json {
		items, err := cl.News(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	var items []news.Item
	fmt.Fprintln(out)
	if err := cliui.Step(out, "Fetching news", func() error {
		var err error
		items, err = cl.News(ctx)
		return err
	}); err != nil {
		return err
	}

	fmt.Fprintln(out)
	cliui.WriteNews(out, items)
	fmt.Fprintln(out)
	return nil
}
