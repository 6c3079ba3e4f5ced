package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/stats"
	"github.com/papercomputeco/chatrelay/pkg/stats/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/stats/postgres"
	"github.com/papercomputeco/chatrelay/pkg/stats/redis"
	"github.com/papercomputeco/chatrelay/pkg/stats/sqlite"
)

// newStatsDriver opens the stats backend named by s.storageDriver. A
// relative SQLite path is resolved against dir.
func newStatsDriver(ctx context.Context, s *settings, dir string, l *slog.Logger) (stats.Driver, error) {
	switch s.storageDriver {
	case "memory":
		l.Info("using in-memory stats storage")
		return inmemory.NewDriver(), nil

	case "", "sqlite":
		path := s.sqlitePath
		if path == "" {
			return nil, errors.New("sqlite storage requires storage.sqlite_path")
		}
		if path != ":memory:" && !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite stats driver: %w", err)
		}
		l.Info("using SQLite stats storage", "path", path)
		return driver, nil

	case "postgres":
		if s.postgresDSN == "" {
			return nil, errors.New("postgres storage requires storage.postgres_dsn")
		}
		driver, err := postgres.NewDriver(ctx, s.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL stats driver: %w", err)
		}
		l.Info("using PostgreSQL stats storage")
		return driver, nil

	case "libsql":
		if s.libsqlURL == "" {
			return nil, errors.New("libsql storage requires storage.libsql_url")
		}
		driver, err := newLibSQLDriver(ctx, s.libsqlURL)
		if err != nil {
			return nil, err
		}
		l.Info("using libSQL stats storage")
		return driver, nil

	case "redis":
		if s.redisAddr == "" {
			return nil, errors.New("redis storage requires storage.redis_addr")
		}
		driver, err := redis.NewDriver(ctx, redis.Options{
			Addr:     s.redisAddr,
			Password: s.redisPassword,
			DB:       s.redisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis stats driver: %w", err)
		}
		l.Info("using Redis stats storage", "addr", s.redisAddr)
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (available: %v)", s.storageDriver, config.StorageDrivers)
	}
}

// newPublisher builds the chat event publisher named by s.eventProvider.
func newPublisher(s *settings, l *slog.Logger) (eventstream.Publisher, error) {
	switch s.eventProvider {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: s.kafkaBrokers,
			Topic:   s.kafkaTopic,
			Logger:  l,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		l.Info("publishing chat events to kafka", "brokers", s.kafkaBrokers, "topic", s.kafkaTopic)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event stream provider %q", s.eventProvider)
	}
}
