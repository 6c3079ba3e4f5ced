// Package redis provides a Redis-backed stats driver. The summary and every
// day live in their own hash.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// DefaultPrefix namespaces every key the driver writes.
const DefaultPrefix = "chatrelay:stats"

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix defaults to DefaultPrefix.
	Prefix string
}

// Driver implements stats.Driver on Redis.
type Driver struct {
	client *redis.Client
	prefix string
}

// NewDriver connects and pings the server.
func NewDriver(ctx context.Context, opts Options) (*Driver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Driver{client: client, prefix: prefix}, nil
}

func (d *Driver) summaryKey() string {
	return d.prefix + ":summary"
}

func (d *Driver) dayKey(day string) string {
	return d.prefix + ":daily:" + day
}

// Seed sets the baseline fields that are not present yet.
func (d *Driver) Seed(ctx context.Context, seed stats.Seed) error {
	key := d.summaryKey()
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "start_date", seed.StartDate)
		pipe.HSetNX(ctx, key, "initial_visits", seed.InitialVisits)
		pipe.HSetNX(ctx, key, "initial_api_calls", seed.InitialAPICalls)
		pipe.HSetNX(ctx, key, "total_visits", 0)
		pipe.HSetNX(ctx, key, "total_api_calls", 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed summary: %w", err)
	}
	return nil
}

// Increment bumps the day hash and the summary in one MULTI block.
func (d *Driver) Increment(ctx context.Context, day string, metric stats.Metric) error {
	if !metric.Valid() {
		return fmt.Errorf("%w: %d", stats.ErrUnknownMetric, metric)
	}

	total := "total_visits"
	if metric == stats.APICalls {
		total = "total_api_calls"
	}

	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, d.dayKey(day), metric.Column(), 1)
		pipe.HIncrBy(ctx, d.summaryKey(), total, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment %s for %s: %w", metric, day, err)
	}
	return nil
}

// Summary reads the summary hash.
func (d *Driver) Summary(ctx context.Context) (*stats.Summary, error) {
	fields, err := d.client.HGetAll(ctx, d.summaryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	return &stats.Summary{
		StartDate:       fields["start_date"],
		InitialVisits:   parseInt(fields["initial_visits"]),
		InitialAPICalls: parseInt(fields["initial_api_calls"]),
		RunningVisits:   parseInt(fields["total_visits"]),
		RunningAPICalls: parseInt(fields["total_api_calls"]),
	}, nil
}

// Days fetches every day hash between from and to.
func (d *Driver) Days(ctx context.Context, from, to string) ([]stats.DailyCounter, error) {
	start, err := time.Parse(stats.DayLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", from, err)
	}
	end, err := time.Parse(stats.DayLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", to, err)
	}

	var days []string
	for t := end; !t.Before(start); t = t.AddDate(0, 0, -1) {
		days = append(days, t.Format(stats.DayLayout))
	}

	cmds := make([]*redis.MapStringStringCmd, len(days))
	_, err = d.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, day := range days {
			cmds[i] = pipe.HGetAll(ctx, d.dayKey(day))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read daily counters: %w", err)
	}

	out := make([]stats.DailyCounter, 0, len(days))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, stats.DailyCounter{
			Date:     days[i],
			Visits:   parseInt(fields["visits"]),
			APICalls: parseInt(fields["api_calls"]),
		})
	}
	return out, nil
}

// Close closes the client.
func (d *Driver) Close() error {
	return d.client.Close()
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
