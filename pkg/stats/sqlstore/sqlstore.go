// Package sqlstore implements stats.Driver on database/sql using ent's
// dialect aware SQL builder. The sqlite, postgres and libsql drivers embed it.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// Store implements stats.Driver.
type Store struct {
	db      *sql.DB
	dialect string
}

// New migrates the stats tables on db and returns a Store. dialect is one of
// entgo.io/ent/dialect's names.
func New(ctx context.Context, db *sql.DB, dialect string) (*Store, error) {
	m, err := schema.NewMigrate(entsql.OpenDB(dialect, db))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// Seed inserts the summary row unless it already exists.
func (s *Store) Seed(ctx context.Context, seed stats.Seed) error {
	query, args := s.builder().
		Insert(summaryTable).
		Columns("id", "start_date", "initial_visits", "initial_api_calls", "total_visits", "total_api_calls").
		Values(summaryID, seed.StartDate, seed.InitialVisits, seed.InitialAPICalls, 0, 0).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to seed summary: %w", err)
	}
	return nil
}

// Increment upserts the day row and bumps the running total in one
// transaction.
func (s *Store) Increment(ctx context.Context, day string, metric stats.Metric) error {
	if !metric.Valid() {
		return fmt.Errorf("%w: %d", stats.ErrUnknownMetric, metric)
	}

	var visits, calls int64
	total := "total_visits"
	if metric == stats.APICalls {
		calls = 1
		total = "total_api_calls"
	} else {
		visits = 1
	}

	b := s.builder()
	upsert, upsertArgs := b.
		Insert(dailyTable).
		Columns("day", "visits", "api_calls").
		Values(day, visits, calls).
		OnConflict(
			entsql.ConflictColumns("day"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add(metric.Column(), 1)
			}),
		).
		Query()

	bump, bumpArgs := b.
		Update(summaryTable).
		Add(total, 1).
		Where(entsql.EQ("id", summaryID)).
		Query()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, upsert, upsertArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to upsert day %s: %w", day, err)
	}
	if _, err := tx.ExecContext(ctx, bump, bumpArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update summary: %w", err)
	}

	return tx.Commit()
}

// Summary reads the summary row. A missing row yields a zero Summary.
func (s *Store) Summary(ctx context.Context) (*stats.Summary, error) {
	b := s.builder()
	query, args := b.
		Select("start_date", "initial_visits", "initial_api_calls", "total_visits", "total_api_calls").
		From(b.Table(summaryTable)).
		Where(entsql.EQ("id", summaryID)).
		Query()

	var sum stats.Summary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.StartDate,
		&sum.InitialVisits,
		&sum.InitialAPICalls,
		&sum.RunningVisits,
		&sum.RunningAPICalls,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &stats.Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	return &sum, nil
}

// Days returns rows with from <= day <= to, newest first.
func (s *Store) Days(ctx context.Context, from, to string) ([]stats.DailyCounter, error) {
	b := s.builder()
	query, args := b.
		Select("day", "visits", "api_calls").
		From(b.Table(dailyTable)).
		Where(entsql.And(
			entsql.GTE("day", from),
			entsql.LTE("day", to),
		)).
		OrderBy(entsql.Desc("day")).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counters: %w", err)
	}
	defer rows.Close()

	var out []stats.DailyCounter
	for rows.Next() {
		var row stats.DailyCounter
		if err := rows.Scan(&row.Date, &row.Visits, &row.APICalls); err != nil {
			return nil, fmt.Errorf("failed to scan daily counter: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
