// Package configcmder provides the config command for managing persistent
// chatrelay configuration stored in the .chatrelay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

const configLongDesc string = `Manage persistent chatrelay configuration.

Configuration is stored as config.toml in the .chatrelay/ directory and
provides default values for command flags. CHATRELAY_* environment variables
and CLI flags take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  upstream.base_url, upstream.token, upstream.bot_id, upstream.timeout,
  server.listen,
  storage.driver, storage.sqlite_path, storage.postgres_dsn, storage.libsql_url,
  storage.redis_addr, storage.redis_password, storage.redis_db,
  stats.start_date, stats.initial_visits, stats.initial_api_calls, stats.timezone,
  news.prompt, news.user_id, news.cache_ttl,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  client.target

Use subcommands to get, set, or list configuration values:
  chatrelay config set <key> <value>    Set a configuration value
  chatrelay config get <key>            Get a configuration value
  chatrelay config list                 List all configuration values

Examples:
  chatrelay config set upstream.bot_id 7504643730922848271
  chatrelay config set storage.driver redis
  chatrelay config get upstream.base_url
  chatrelay config list`

const configShortDesc string = "Manage persistent chatrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys completes the first argument with the known config keys.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
