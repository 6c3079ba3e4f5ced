// Package inmemory is a stats.Driver backed by maps. Counters are lost on
// restart.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// Driver implements stats.Driver in memory.
type Driver struct {
	mu      sync.RWMutex
	summary *stats.Summary
	days    map[string]*stats.DailyCounter
}

// NewDriver returns an empty Driver.
func NewDriver() *Driver {
	return &Driver{
		days: make(map[string]*stats.DailyCounter),
	}
}

// Seed creates the summary once.
func (d *Driver) Seed(_ context.Context, seed stats.Seed) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.summary != nil {
		return nil
	}
	d.summary = &stats.Summary{
		StartDate:       seed.StartDate,
		InitialVisits:   seed.InitialVisits,
		InitialAPICalls: seed.InitialAPICalls,
	}
	return nil
}

// Increment bumps the day row and running total under one lock.
func (d *Driver) Increment(_ context.Context, day string, metric stats.Metric) error {
	if !metric.Valid() {
		return fmt.Errorf("%w: %d", stats.ErrUnknownMetric, metric)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.summary == nil {
		d.summary = &stats.Summary{StartDate: day}
	}

	row, ok := d.days[day]
	if !ok {
		row = &stats.DailyCounter{Date: day}
		d.days[day] = row
	}

	switch metric {
	case stats.Visits:
		row.Visits++
		d.summary.RunningVisits++
	case stats.APICalls:
		row.APICalls++
		d.summary.RunningAPICalls++
	}
	return nil
}

// Summary returns a copy of the summary row.
func (d *Driver) Summary(_ context.Context) (*stats.Summary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.summary == nil {
		return &stats.Summary{}, nil
	}
	s := *d.summary
	return &s, nil
}

// Days returns copies of the rows in [from, to].
func (d *Driver) Days(_ context.Context, from, to string) ([]stats.DailyCounter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]stats.DailyCounter, 0, len(d.days))
	for day, row := range d.days {
		if day >= from && day <= to {
			out = append(out, *row)
		}
	}
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
