// Package remote is the cloud side of the survey sync: a port describing the
// operations the sync engine needs, and a database/sql implementation that
// speaks to Supabase (Postgres, via pgx) or Turso (libSQL).
//
// Remote tables mirror the local ones minus the synced/revision bookkeeping
// and are keyed by the same identifiers the device assigned.
package remote

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no remote URL was configured.
var ErrNotConfigured = errors.New("remote store not configured")

// Filter selects rows by column equality. An empty filter matches all rows.
type Filter map[string]any

// Row is one remote row keyed by column name.
type Row map[string]any

// Store is the remote store contract consumed by the sync engine.
type Store interface {
	// Upsert inserts the row or, if a row with the same id exists, updates it.
	// cols must start with "id".
	Upsert(ctx context.Context, table string, cols []string, vals []any) error

	// Exists reports whether a row with the given id exists.
	Exists(ctx context.Context, table string, id int64) (bool, error)

	// Select returns the rows matching filter, in id order.
	Select(ctx context.Context, table string, filter Filter) ([]Row, error)

	// Delete removes the rows matching filter and returns how many went away.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)

	// Ping checks that the remote is reachable.
	Ping(ctx context.Context) error

	Close() error
}
