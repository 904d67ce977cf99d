package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PriceWatch/internal/ports"
)

// Dialect names a supported SQL backend; it doubles as the database/sql driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists listings, price history and events through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.Store = (*SQLStore)(nil)

// Open connects to the configured backend and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(driver)))
	switch dialect {
	case DialectSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// SQLite allows a single writer; serialize at the pool.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	store, err := New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection and migrates the schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}

	store := &SQLStore{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error { return s.db.Close() }

// Timestamps are stored as unix milliseconds so ordering and range filters
// behave the same on every backend.
func (s *SQLStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id              TEXT PRIMARY KEY,
			url             TEXT NOT NULL UNIQUE,
			selector        TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'active',
			last_checked_at BIGINT,
			created_at      BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings (status)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id          TEXT PRIMARY KEY,
			listing_id  TEXT NOT NULL REFERENCES listings(id),
			price       NUMERIC(14,2) NOT NULL,
			currency    TEXT NOT NULL,
			observed_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_listing_observed ON price_history (listing_id, observed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS error_events (
			id             TEXT PRIMARY KEY,
			listing_id     TEXT NOT NULL,
			message        TEXT NOT NULL,
			stack_trace    TEXT NOT NULL DEFAULT '',
			attempt_number INTEGER NOT NULL,
			created_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_events_listing_created ON error_events (listing_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS system_events (
			id         TEXT PRIMARY KEY,
			listing_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			message    TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_events_type_created ON system_events (event_type, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLStore) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryRowContext(ctx, query, args...), nil
}

func (s *SQLStore) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	row, err := s.queryRow(ctx, b)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
