// Package store persists ingestion job records. Backends are interchangeable:
// each is a keyed record store that is linearizable per id.
package store

import (
	"context"
	"fmt"
	"ingestion/internal/job"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Store is a job.Store that can be health-checked and closed.
type Store interface {
	job.Store
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by driver, connected to dsn.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "ingestion.db"
		}
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverRedis:
		return OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
