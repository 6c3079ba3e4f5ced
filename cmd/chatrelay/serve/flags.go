package servecmder

import "github.com/papercomputeco/chatrelay/pkg/config"

var serveFlags = config.FlagSet{
	config.FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the relay to listen on"},
	config.FlagBaseURL:         {Name: "base-url", ViperKey: "upstream.base_url", Description: "Coze API base URL"},
	config.FlagToken:           {Name: "token", ViperKey: "upstream.token", Description: "Coze personal access token"},
	config.FlagBotID:           {Name: "bot-id", ViperKey: "upstream.bot_id", Description: "Coze bot id"},
	config.FlagTimeout:         {Name: "timeout", ViperKey: "upstream.timeout", Description: "Deadline for one chat turn (Go duration)"},
	config.FlagStorageDriver:   {Name: "storage", ViperKey: "storage.driver", Description: "Stats storage driver (memory, sqlite, postgres, libsql, redis)"},
	config.FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite stats database, relative to the config dir"},
	config.FlagPostgresDSN:     {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	config.FlagLibSQLURL:       {Name: "libsql", ViperKey: "storage.libsql_url", Description: "libSQL database URL"},
	config.FlagRedisAddr:       {Name: "redis", ViperKey: "storage.redis_addr", Description: "Redis address (host:port)"},
	config.FlagRedisDB:         {Name: "redis-db", ViperKey: "storage.redis_db", Description: "Redis database number"},
	config.FlagTimezone:        {Name: "timezone", ViperKey: "stats.timezone", Description: "IANA time zone used to bucket daily counters"},
	config.FlagInitialVisits:   {Name: "initial-visits", ViperKey: "stats.initial_visits", Description: "Visit count carried over from before the start date"},
	config.FlagInitialAPICalls: {Name: "initial-api-calls", ViperKey: "stats.initial_api_calls", Description: "API call count carried over from before the start date"},
	config.FlagNewsCacheTTL:    {Name: "news-cache-ttl", ViperKey: "news.cache_ttl", Description: "How long a fetched news list is served from memory"},
	config.FlagEventProvider:   {Name: "events", ViperKey: "eventstream.provider", Description: "Chat event publisher (none, kafka)"},
	config.FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma-separated Kafka broker addresses"},
	config.FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for chat events"},
}

var serveStringFlags = []string{
	config.FlagListen,
	config.FlagBaseURL,
	config.FlagToken,
	config.FlagBotID,
	config.FlagTimeout,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagLibSQLURL,
	config.FlagRedisAddr,
	config.FlagTimezone,
	config.FlagNewsCacheTTL,
	config.FlagEventProvider,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

var serveUintFlags = []string{
	config.FlagRedisDB,
	config.FlagInitialVisits,
	config.FlagInitialAPICalls,
}
