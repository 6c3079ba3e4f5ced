//go:build libsql

// Package libsql provides a stats driver for libSQL and Turso databases.
//
// go-libsql links its own SQLite build, which clashes with mattn/go-sqlite3
// at link time, so the package is only compiled with the libsql build tag.
package libsql

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	_ "github.com/tursodatabase/go-libsql" // registers the "libsql" driver

	"github.com/papercomputeco/chatrelay/pkg/stats/sqlstore"
)

// Driver implements stats.Driver on libSQL.
type Driver struct {
	*sqlstore.Store
}

// NewDriver opens url, either "file:path.db" or a remote
// "libsql://host?authToken=..." URL.
func NewDriver(ctx context.Context, url string) (*Driver, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
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
