package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shortage-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Sentinel errors distinguishing the failure classes API callers care
// about: an unreachable warehouse must never look like an empty result.
var (
	// ErrStoreUnavailable wraps connectivity and query failures.
	ErrStoreUnavailable = errors.New("exception store unavailable")
	// ErrNotFound means the store answered and the row is absent.
	ErrNotFound = errors.New("not found")
)

const (
	stordTable   = "stord_exceptions"
	shipbobTable = "shipbob_exceptions"
)

// tableFor maps a source to its exception table. One logical table per
// source keeps the identity column a plain primary key.
func tableFor(source models.Source) (string, error) {
	switch source {
	case models.SourceStord:
		return stordTable, nil
	case models.SourceShipbob:
		return shipbobTable, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrInvalidSource, source)
	}
}

// Store persists exception records in postgres.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection; used by tests.
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// EnsureSchema creates the per-source exception tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{stordTable, shipbobTable} {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				identity      TEXT PRIMARY KEY,
				raw_payload   JSONB,
				source        TEXT NOT NULL,
				first_seen_at TIMESTAMPTZ NOT NULL,
				last_seen_at  TIMESTAMPTZ NOT NULL,
				is_active     BOOLEAN NOT NULL,
				resolved_at   TIMESTAMPTZ
			)`, table)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("%w: create table %s: %v", ErrStoreUnavailable, table, err)
		}

		idx := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s_first_seen_at_idx ON %s (first_seen_at)",
			table, table)
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("%w: create index on %s: %v", ErrStoreUnavailable, table, err)
		}
	}
	return nil
}
