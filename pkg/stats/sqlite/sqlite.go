// Package sqlite provides a SQLite-backed stats driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chatrelay/pkg/stats/sqlstore"
)

// Driver implements stats.Driver using SQLite.
type Driver struct {
	*sqlstore.Store
}

// NewDriver opens or creates the database at dbPath. Use ":memory:" for a
// throwaway database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps pragmas and in-memory databases stable and makes
	// writers queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store, err := sqlstore.New(ctx, db, dialect.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Store: store}, nil
}
