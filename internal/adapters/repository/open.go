package repository

import (
	"context"
	"fmt"
)

// Open returns the store for driver: memory, sqlite or postgres.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite, DriverPostgres:
		return NewSQLStore(ctx, driver, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
