package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// Supported DB_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Options selects and configures a store implementation.
type Options struct {
	Driver   string
	DSN      string // postgres
	Path     string // sqlite
	MaxConns int
}

// Open returns the store for opts.Driver.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (weather.Store, error) {
	switch opts.Driver {
	case DriverPostgres, "":
		return NewPostgres(ctx, opts.DSN, opts.MaxConns, logger)
	case DriverSQLite:
		return NewSQLite(opts.Path, logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
}
