//go:build !libsql

package servecmder

import (
	"context"
	"errors"

	"github.com/papercomputeco/chatrelay/pkg/stats"
)

func newLibSQLDriver(_ context.Context, _ string) (stats.Driver, error) {
	return nil, errors.New("libsql storage is not compiled in; rebuild with -tags libsql")
}
