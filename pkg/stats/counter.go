package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// Counter is the process-wide entry point for recording and reading counters.
type Counter struct {
	mu     sync.Mutex
	driver Driver
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Counter.
type Option func(*Counter)

// WithLocation sets the time zone that decides day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(c *Counter) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// WithLogger sets the counter logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Counter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCounter seeds driver and returns a Counter over it.
func NewCounter(ctx context.Context, driver Driver, seed Seed, opts ...Option) (*Counter, error) {
	c := &Counter{
		driver: driver,
		loc:    time.Local,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if seed.StartDate == "" {
		seed.StartDate = c.today()
	}
	if err := driver.Seed(ctx, seed); err != nil {
		return nil, fmt.Errorf("seeding stats: %w", err)
	}

	return c, nil
}

// RecordVisit counts one visit for today.
func (c *Counter) RecordVisit(ctx context.Context) error {
	return c.record(ctx, Visits)
}

// RecordAPICall counts one API call for today.
func (c *Counter) RecordAPICall(ctx context.Context) error {
	return c.record(ctx, APICalls)
}

func (c *Counter) record(ctx context.Context, metric Metric) error {
	day := c.today()

	c.mu.Lock()
	err := c.driver.Increment(ctx, day, metric)
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("could not record counter", "metric", metric.String(), "day", day, "error", err)
		return fmt.Errorf("recording %s: %w", metric, err)
	}
	return nil
}

// Read returns the totals, today's counters and the last WindowDays days,
// most recent first. Days without a row are reported as zero.
func (c *Counter) Read(ctx context.Context) (*Snapshot, error) {
	summary, err := c.driver.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}

	today := c.now().In(c.loc)
	days := make([]string, WindowDays)
	for i := range days {
		days[i] = today.AddDate(0, 0, -i).Format(DayLayout)
	}

	rows, err := c.driver.Days(ctx, days[len(days)-1], days[0])
	if err != nil {
		return nil, fmt.Errorf("reading daily counters: %w", err)
	}

	byDay := make(map[string]DailyCounter, len(rows))
	for _, row := range rows {
		byDay[row.Date] = row
	}

	daily := make([]DailyCounter, 0, WindowDays)
	for _, d := range days {
		row, ok := byDay[d]
		if !ok {
			row = DailyCounter{Date: d}
		}
		daily = append(daily, row)
	}

	return &Snapshot{
		StartDate:     summary.StartDate,
		TotalVisits:   summary.TotalVisits(),
		TotalAPICalls: summary.TotalAPICalls(),
		TodayVisits:   daily[0].Visits,
		TodayAPICalls: daily[0].APICalls,
		Daily:         daily,
	}, nil
}

// Close closes the underlying driver.
func (c *Counter) Close() error {
	return c.driver.Close()
}

func (c *Counter) today() string {
	return c.now().In(c.loc).Format(DayLayout)
}
