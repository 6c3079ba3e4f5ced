//go:build libsql

package servecmder

import (
	"context"
	"fmt"

	"github.com/papercomputeco/chatrelay/pkg/stats"
	"github.com/papercomputeco/chatrelay/pkg/stats/libsql"
)

func newLibSQLDriver(ctx context.Context, url string) (stats.Driver, error) {
	driver, err := libsql.NewDriver(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create libSQL stats driver: %w", err)
	}
	return driver, nil
}
