package servecmder

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// settings is the resolved serve configuration after flag, env, file and
// default layering.
type settings struct {
	listen string

	baseURL string
	token   string
	botID   string
	timeout time.Duration

	storageDriver string
	sqlitePath    string
	postgresDSN   string
	libsqlURL     string
	redisAddr     string
	redisPassword string
	redisDB       int

	seed     stats.Seed
	location *time.Location

	newsPrompt string
	newsUserID string
	newsTTL    time.Duration

	eventProvider string
	kafkaBrokers  []string
	kafkaTopic    string
}

func loadSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		listen:        v.GetString("server.listen"),
		baseURL:       v.GetString("upstream.base_url"),
		token:         v.GetString("upstream.token"),
		botID:         v.GetString("upstream.bot_id"),
		storageDriver: v.GetString("storage.driver"),
		sqlitePath:    v.GetString("storage.sqlite_path"),
		postgresDSN:   v.GetString("storage.postgres_dsn"),
		libsqlURL:     v.GetString("storage.libsql_url"),
		redisAddr:     v.GetString("storage.redis_addr"),
		redisPassword: v.GetString("storage.redis_password"),
		redisDB:       v.GetInt("storage.redis_db"),
		newsPrompt:    v.GetString("news.prompt"),
		newsUserID:    v.GetString("news.user_id"),
		eventProvider: v.GetString("eventstream.provider"),
		kafkaTopic:    v.GetString("eventstream.topic"),
		seed: stats.Seed{
			StartDate:       v.GetString("stats.start_date"),
			InitialVisits:   v.GetInt64("stats.initial_visits"),
			InitialAPICalls: v.GetInt64("stats.initial_api_calls"),
		},
	}

	var err error
	if s.timeout, err = parseDuration("upstream.timeout", v.GetString("upstream.timeout")); err != nil {
		return nil, err
	}
	if s.newsTTL, err = parseDuration("news.cache_ttl", v.GetString("news.cache_ttl")); err != nil {
		return nil, err
	}

	if s.seed.StartDate != "" {
		if _, err := time.Parse(time.DateOnly, s.seed.StartDate); err != nil {
			return nil, fmt.Errorf("invalid stats.start_date %q: %w", s.seed.StartDate, err)
		}
	}

	zone := v.GetString("stats.timezone")
	if zone == "" {
		zone = "Local"
	}
	if s.location, err = time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("invalid stats.timezone %q: %w", zone, err)
	}

	for _, b := range strings.Split(v.GetString("eventstream.brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			s.kafkaBrokers = append(s.kafkaBrokers, b)
		}
	}

	return s, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
