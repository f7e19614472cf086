/*
Package sqlite provides the SQL implementation of payroll.Store.

PURPOSE:
  Persists reference data, both ride record shapes, approvals and disputes.
  Runs on SQLite (mattn/go-sqlite3, the default) and on PostgreSQL
  (lib/pq). Queries are written once with '?' placeholders and rebound per
  driver by sqlx.

KEY TABLES:
  rate_rows, hours_codes, hours_options:  CAO reference data
  drivers, driver_settings:               per-driver constants
  contracts, vacation_entitlements:       vacation accrual inputs
  ride_records, rides, ride_executions:   the two ride shapes
  week_approvals, period_approvals:       sign-off state
  disputes, execution_disputes,
  dispute_comments:                       correction threads

COMPUTED COLUMNS:
  Every computed figure on ride_records / ride_executions is nullable. NULL
  means "not yet computed" and is distinct from a computed zero.

STATUS COLUMNS:
  Status enums are stored as their string codes, constrained by CHECK.

CONSTRAINTS:
  - idx_week_approvals_key:   one week approval per (driver, ISO year, week)
  - idx_period_approvals_key: one period approval per (driver, year, period)
  - idx_disputes_open:        one open dispute per ride record
  - idx_execution_disputes_open: one open dispute per execution
  A violated key surfaces as generic.ErrAlreadyExists so lazy creation can
  re-fetch.

OPTIMISTIC LOCKING:
  Updates carry "WHERE id = ? AND version = ?" and bump the version; zero
  affected rows is a VersionConflictError (or NotFound when the row is gone).

USAGE:
  store, err := sqlite.New("./data/rides.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewService(store, cfg)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store implements payroll.Store on a SQL database.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext // db, or the open transaction of a tx view
	tx bool
}

// New creates a SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to driver ("sqlite3" or "postgres") at dsn and migrates the
// schema.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn += "?_foreign_keys=on&_journal_mode=WAL"
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" a single database and serializes
		// writers the way SQLite wants.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. Calls on a tx view
// join the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	if s.tx {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	view := &Store{db: s.db, q: sqlTx, tx: true}
	if err := fn(view); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.q.Rebind(query), args...)
}

func (s *Store) namedExec(ctx context.Context, query string, arg any) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, s.q, query, arg)
}

// getOne wraps sql.ErrNoRows as a NotFoundError.
func (s *Store) getOne(ctx context.Context, entity, id string, dest any, query string, args ...any) error {
	err := s.get(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", entity, err)
	}
	return nil
}

// insertUnique runs an INSERT ... ON CONFLICT DO NOTHING and reports a
// skipped row as ErrAlreadyExists.
func (s *Store) insertUnique(ctx context.Context, entity, id, query string, arg any) error {
	res, err := s.namedExec(ctx, query, arg)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%s %s: %w", entity, id, generic.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, generic.ErrAlreadyExists)
	}
	return nil
}

// updateVersioned runs an optimistic UPDATE. The query must filter on
// :id and :version.
func (s *Store) updateVersioned(ctx context.Context, entity, table, id string, version int, query string, arg any) error {
	res, err := s.namedExec(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	if n == 1 {
		return nil
	}

	var actual int
	err = s.get(ctx, &actual, "SELECT version FROM "+table+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	return &generic.VersionConflictError{Entity: entity, ID: id, Expected: version, Actual: actual}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}

// =============================================================================
// COLUMN ENCODING
// =============================================================================

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (*generic.TimePoint, error) {
	if !ns.Valid {
		return nil, nil
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ payroll.Store = (*Store)(nil)
