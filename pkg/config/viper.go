package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

// EnvPrefix is prepended to every environment variable chatrelay reads.
const EnvPrefix = "CHATRELAY"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATRELAY_UPSTREAM_TOKEN, CHATRELAY_SERVER_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Credentials are the upstream values that may change while serving.
type Credentials struct {
	Token string
	BotID string
}

// WatchCredentials calls onChange with the current upstream token and bot id
// every time the loaded config file is written. It does nothing when no
// config file was found.
func WatchCredentials(v *viper.Viper, onChange func(Credentials)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Credentials{
			Token: v.GetString("upstream.token"),
			BotID: v.GetString("upstream.bot_id"),
		})
	})
	v.WatchConfig()
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Upstream
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.token", d.Upstream.Token)
	v.SetDefault("upstream.bot_id", d.Upstream.BotID)
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.libsql_url", d.Storage.LibSQLURL)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", d.Storage.RedisPassword)
	v.SetDefault("storage.redis_db", d.Storage.RedisDB)

	// Stats
	v.SetDefault("stats.start_date", d.Stats.StartDate)
	v.SetDefault("stats.initial_visits", d.Stats.InitialVisits)
	v.SetDefault("stats.initial_api_calls", d.Stats.InitialAPICalls)
	v.SetDefault("stats.timezone", d.Stats.Timezone)

	// News
	v.SetDefault("news.prompt", d.News.Prompt)
	v.SetDefault("news.user_id", d.News.UserID)
	v.SetDefault("news.cache_ttl", d.News.CacheTTL)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// Client
	v.SetDefault("client.target", d.Client.Target)
}
