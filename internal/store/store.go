// Package store persists resolved articles in the remote Postgres table and
// answers the two lookups the sync writer needs: the highest identifier in
// use and the origin links already present for a date.
package store

import (
	"context"
	"time"
)

// Record is one row of the remote table.
type Record struct {
	ID             int64
	Date           time.Time
	City           string
	Latitude       float64
	Longitude      float64
	Title          string
	Body           string
	OriginURL      string
	SourceURL      string
	Labels         []string
	DepartmentCode string
}

// Store is the remote table boundary consumed by the sync writer and the
// crawl controller.
type Store interface {
	// MaxID returns the highest identifier in the table, 0 when empty.
	MaxID(ctx context.Context) (int64, error)

	// LastDate returns the most recent article date in the table; ok is
	// false when the table is empty.
	LastDate(ctx context.Context) (time.Time, bool, error)

	// LinksForDate returns the distinct origin URLs stored for one date.
	LinksForDate(ctx context.Context, day time.Time) (map[string]struct{}, error)

	// InsertBatch inserts all records in one atomic statement.
	InsertBatch(ctx context.Context, records []Record) error

	// Close releases the underlying connections.
	Close()
}
