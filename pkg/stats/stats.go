// Package stats keeps visit and API call counters per calendar day.
//
// Counter serializes increments behind one mutex and delegates persistence to
// a Driver. Drivers perform the day upsert and the running total increment as
// one atomic unit.
package stats

import (
	"context"
	"errors"
)

// DayLayout is the format of day keys.
const DayLayout = "2006-01-02"

// WindowDays is the number of days returned by Read.
const WindowDays = 7

// Metric selects which counter an increment touches.
type Metric int

const (
	Visits Metric = iota
	APICalls
)

// Column is the storage name of the metric.
func (m Metric) Column() string {
	if m == APICalls {
		return "api_calls"
	}
	return "visits"
}

func (m Metric) String() string {
	return m.Column()
}

// ErrUnknownMetric is returned by drivers for an out of range Metric.
var ErrUnknownMetric = errors.New("unknown metric")

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m == Visits || m == APICalls
}

// DailyCounter holds the counters of one day.
type DailyCounter struct {
	Date     string `json:"date"`
	Visits   int64  `json:"visits"`
	APICalls int64  `json:"api_calls"`
}

// Seed is the baseline recorded before this service started counting.
type Seed struct {
	StartDate       string
	InitialVisits   int64
	InitialAPICalls int64
}

// DefaultSeed carries the baseline of the first deployment.
var DefaultSeed = Seed{
	StartDate:       "2025-10-08",
	InitialVisits:   520,
	InitialAPICalls: 1231,
}

// Summary is the single summary row.
type Summary struct {
	StartDate       string
	InitialVisits   int64
	InitialAPICalls int64
	RunningVisits   int64
	RunningAPICalls int64
}

// TotalVisits is the displayed visit total.
func (s Summary) TotalVisits() int64 {
	return s.InitialVisits + s.RunningVisits
}

// TotalAPICalls is the displayed API call total.
func (s Summary) TotalAPICalls() int64 {
	return s.InitialAPICalls + s.RunningAPICalls
}

// Snapshot is what Read reports.
type Snapshot struct {
	StartDate     string         `json:"start_date"`
	TotalVisits   int64          `json:"total_visits"`
	TotalAPICalls int64          `json:"total_api_calls"`
	TodayVisits   int64          `json:"today_visits"`
	TodayAPICalls int64          `json:"today_api_calls"`
	Daily         []DailyCounter `json:"daily"`
}

// Driver persists counters.
type Driver interface {
	// Seed creates the summary row from seed if it does not exist yet.
	Seed(ctx context.Context, seed Seed) error

	// Increment adds one to metric for day, creating the day row when
	// absent, and adds one to the running total. Both happen atomically.
	Increment(ctx context.Context, day string, metric Metric) error

	// Summary returns the summary row.
	Summary(ctx context.Context) (*Summary, error)

	// Days returns the stored rows with from <= date <= to in any order.
	Days(ctx context.Context, from, to string) ([]DailyCounter, error)

	// Close releases the driver.
	Close() error
}
