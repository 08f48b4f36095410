package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// dateLayout is the calendar-date form used for the date column.
const dateLayout = "2006-01-02"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbConn is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	conn  dbConn
	table string
}

// NewPostgresStore connects a pool using the provided config.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStoreWithConn(pool, cfg.Table)
}

// NewPostgresStoreWithConn wraps an existing connection, mainly for tests.
func NewPostgresStoreWithConn(conn dbConn, table string) (*PostgresStore, error) {
	if table == "" {
		table = "faits_divers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{conn: conn, table: table}, nil
}

// MaxID returns the highest identifier in the table, 0 when empty.
func (s *PostgresStore) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(id), 0) FROM %s", s.table)
	if err := s.conn.QueryRow(ctx, query).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("select max id: %w", err)
	}
	return maxID, nil
}

// LastDate returns the most recent article date, or ok=false for an empty
// table.
func (s *PostgresStore) LastDate(ctx context.Context) (time.Time, bool, error) {
	var day time.Time
	query := fmt.Sprintf("SELECT date FROM %s ORDER BY date DESC LIMIT 1", s.table)
	err := s.conn.QueryRow(ctx, query).Scan(&day)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("select last date: %w", err)
	}
	return day.UTC(), true, nil
}

// LinksForDate returns the distinct origin URLs stored for one date.
func (s *PostgresStore) LinksForDate(ctx context.Context, day time.Time) (map[string]struct{}, error) {
	query := fmt.Sprintf("SELECT DISTINCT origin_url FROM %s WHERE date = $1", s.table)
	rows, err := s.conn.Query(ctx, query, day.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("select links for %s: %w", day.Format(dateLayout), err)
	}
	defer rows.Close()

	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		if link != "" {
			links[link] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// InsertBatch inserts the records with a single multi-row INSERT, which is
// atomic: either every row of the batch lands or none does.
func (s *PostgresStore) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	query, args := s.buildInsert(records)
	if _, err := s.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %d rows: %w", len(records), err)
	}
	return nil
}

const insertColumns = 11

func (s *PostgresStore) buildInsert(records []Record) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (id, date, city, latitude, longitude, title, body, origin_url, source_url, labels, department_code) VALUES ", s.table)

	args := make([]any, 0, len(records)*insertColumns)
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < insertColumns; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*insertColumns+j+1)
		}
		b.WriteByte(')')
		args = append(args,
			rec.ID,
			rec.Date.Format(dateLayout),
			rec.City,
			rec.Latitude,
			rec.Longitude,
			rec.Title,
			rec.Body,
			rec.OriginURL,
			rec.SourceURL,
			rec.Labels,
			rec.DepartmentCode,
		)
	}
	return b.String(), args
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.conn.Close()
}
