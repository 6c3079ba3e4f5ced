package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Stats       StatsConfig       `toml:"stats"`
	News        NewsConfig        `toml:"news"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Client      ClientConfig      `toml:"client"`
}

// UpstreamConfig holds the Coze chat service settings.
type UpstreamConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Token   string `toml:"token,omitempty"`
	BotID   string `toml:"bot_id,omitempty"`

	// Timeout is a Go duration string bounding each chat call.
	Timeout string `toml:"timeout,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects and configures the stats driver.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite", "postgres", "libsql" or "redis".
	Driver        string `toml:"driver,omitempty"`
	SQLitePath    string `toml:"sqlite_path,omitempty"`
	PostgresDSN   string `toml:"postgres_dsn,omitempty"`
	LibSQLURL     string `toml:"libsql_url,omitempty"`
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       uint   `toml:"redis_db,omitempty"`
}

// StatsConfig holds the seed values the counters start from.
type StatsConfig struct {
	StartDate       string `toml:"start_date,omitempty"`
	InitialVisits   uint   `toml:"initial_visits,omitempty"`
	InitialAPICalls uint   `toml:"initial_api_calls,omitempty"`

	// Timezone is an IANA zone name that decides where days roll over.
	Timezone string `toml:"timezone,omitempty"`
}

// NewsConfig holds the news fetcher settings.
type NewsConfig struct {
	Prompt   string `toml:"prompt,omitempty"`
	UserID   string `toml:"user_id,omitempty"`
	CacheTTL string `toml:"cache_ttl,omitempty"`
}

// EventStreamConfig holds chat-completed event publishing settings.
type EventStreamConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// chatrelay server (chatrelay chat, chatrelay news, chatrelay stats).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatUint(uint64(*field(c)), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func dateKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.Parse(time.DateOnly, v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func zoneKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.LoadLocation(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func choiceKey(name string, choices []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, choice := range choices {
				if v == choice {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (available: %v)", name, v, choices)
		},
	}
}

// StorageDrivers lists the accepted storage.driver values.
var StorageDrivers = []string{"memory", "sqlite", "postgres", "libsql", "redis"}

// EventStreamProviders lists the accepted eventstream.provider values.
var EventStreamProviders = []string{"none", "kafka"}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"upstream.base_url": stringKey(func(c *Config) *string { return &c.Upstream.BaseURL }),
	"upstream.token":    stringKey(func(c *Config) *string { return &c.Upstream.Token }),
	"upstream.bot_id":   stringKey(func(c *Config) *string { return &c.Upstream.BotID }),
	"upstream.timeout":  durationKey("upstream.timeout", func(c *Config) *string { return &c.Upstream.Timeout }),

	"server.listen": stringKey(func(c *Config) *string { return &c.Server.Listen }),

	"storage.driver":         choiceKey("storage.driver", StorageDrivers, func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":    stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":   stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.libsql_url":     stringKey(func(c *Config) *string { return &c.Storage.LibSQLURL }),
	"storage.redis_addr":     stringKey(func(c *Config) *string { return &c.Storage.RedisAddr }),
	"storage.redis_password": stringKey(func(c *Config) *string { return &c.Storage.RedisPassword }),
	"storage.redis_db":       uintKey("storage.redis_db", func(c *Config) *uint { return &c.Storage.RedisDB }),

	"stats.start_date":        dateKey("stats.start_date", func(c *Config) *string { return &c.Stats.StartDate }),
	"stats.initial_visits":    uintKey("stats.initial_visits", func(c *Config) *uint { return &c.Stats.InitialVisits }),
	"stats.initial_api_calls": uintKey("stats.initial_api_calls", func(c *Config) *uint { return &c.Stats.InitialAPICalls }),
	"stats.timezone":          zoneKey("stats.timezone", func(c *Config) *string { return &c.Stats.Timezone }),

	"news.prompt":    stringKey(func(c *Config) *string { return &c.News.Prompt }),
	"news.user_id":   stringKey(func(c *Config) *string { return &c.News.UserID }),
	"news.cache_ttl": durationKey("news.cache_ttl", func(c *Config) *string { return &c.News.CacheTTL }),

	"eventstream.provider": choiceKey("eventstream.provider", EventStreamProviders, func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"client.target": stringKey(func(c *Config) *string { return &c.Client.Target }),
}
