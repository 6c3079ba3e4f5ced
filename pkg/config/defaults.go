package config

const (
	defaultBaseURL = "https://api.coze.cn"
	defaultTimeout = "120s"

	defaultListen = ":5000"

	defaultStorageDriver = "sqlite"
	defaultSQLitePath    = "stats.db"

	defaultStartDate       = "2025-10-08"
	defaultInitialVisits   = 520
	defaultInitialAPICalls = 1231
	defaultTimezone        = "Local"

	defaultNewsPrompt = "最新新闻"
	defaultNewsUserID = "news_fetcher"
	defaultNewsTTL    = "5m"

	defaultEventProvider = "none"
	defaultEventTopic    = "chatrelay.chats"

	defaultClientTarget = "http://localhost:5000"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
// Credentials have no default and must come from the file or environment.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Upstream: UpstreamConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Storage: StorageConfig{
			Driver:     defaultStorageDriver,
			SQLitePath: defaultSQLitePath,
		},
		Stats: StatsConfig{
			StartDate:       defaultStartDate,
			InitialVisits:   defaultInitialVisits,
			InitialAPICalls: defaultInitialAPICalls,
			Timezone:        defaultTimezone,
		},
		News: NewsConfig{
			Prompt:   defaultNewsPrompt,
			UserID:   defaultNewsUserID,
			CacheTTL: defaultNewsTTL,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventProvider,
			Topic:    defaultEventTopic,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
