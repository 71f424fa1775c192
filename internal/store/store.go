package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (blocks, users, records, record_locations, record_owners)
// 1 - Added image_url, created/updated timestamps and is_stolen to records
const currentSchemaVersion = 1

// Store is the versioned materialized view of ledger state.
// Uses SQLite with WAL mode so readers see committed blocks while the
// projector writes the next one.
type Store struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open opens the view database at path, creating it when missing, and
// brings its schema up to currentSchemaVersion. ":memory:" gives a private
// in-memory view. Opening an existing view leaves its rows untouched.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open view %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping view %s: %w", path, err)
	}

	// SQLite only supports one writer at a time. A single connection also
	// keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure view: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	s.db = db
	s.log.Debugw("store opened", "path", path, "schema_version", currentSchemaVersion)
	return s, nil
}

// RetryPolicy controls OpenWithRetry.
type RetryPolicy struct {
	// Retries is the number of additional attempts after the first.
	Retries uint64
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
}

// DefaultRetryPolicy retries five times starting at one second, doubling.
var DefaultRetryPolicy = RetryPolicy{Retries: 5, InitialDelay: time.Second, Multiplier: 2}

// OpenWithRetry calls Open until it succeeds, the policy is exhausted or ctx
// is done. Useful when the database lives on a volume that appears after
// the process starts.
func OpenWithRetry(ctx context.Context, path string, policy RetryPolicy, opts ...Option) (*Store, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialDelay
	eb.Multiplier = policy.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	var (
		s       *Store
		attempt int
	)
	// probe only carries the configured logger.
	probe := &Store{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(probe)
	}

	op := func() error {
		attempt++
		var err error
		s, err = Open(path, opts...)
		if err != nil {
			probe.log.Debugw("connection failed, retrying", "attempt", attempt, "error", err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, policy.Retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("open %s after %d attempts: %w", path, attempt, err)
	}
	probe.log.Infow("successfully connected to database", "path", path, "attempts", attempt)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for ad hoc queries such as scenario assertions.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// viewPragmas are applied once after connecting, which covers the pool's
// single connection. WAL lets API readers see committed blocks while the
// projector writes; busy_timeout is in ms.
var viewPragmas = [...]string{
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"busy_timeout = 5000",
	"foreign_keys = ON",
}

func applyPragmas(db *sqlx.DB) error {
	for _, p := range viewPragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	return nil
}

// applySchema is safe on an existing view: schema.sql only creates what
// is missing and migrations check the recorded version first.
func applySchema(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func runMigrations(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("record schema version %d: %w", currentSchemaVersion, err)
	}

	return nil
}

// migrateToV1 adds the record columns that databases created by the first
// subscriber release lack. New databases already have them from schema.sql.
func migrateToV1(db *sqlx.DB) error {
	var existing []string
	if err := db.Select(&existing, "SELECT name FROM pragma_table_info('records')"); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, col := range existing {
		have[col] = true
	}

	columns := []struct{ name, ddl string }{
		{"image_url", "ALTER TABLE records ADD COLUMN image_url TEXT NOT NULL DEFAULT ''"},
		{"created_timestamp", "ALTER TABLE records ADD COLUMN created_timestamp INTEGER NOT NULL DEFAULT 0"},
		{"updated_timestamp", "ALTER TABLE records ADD COLUMN updated_timestamp INTEGER NOT NULL DEFAULT 0"},
		{"is_stolen", "ALTER TABLE records ADD COLUMN is_stolen BOOLEAN NOT NULL DEFAULT 0"},
	}
	for _, col := range columns {
		if have[col.name] {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("migrate to v1: add %s: %w", col.name, err)
		}
	}
	return nil
}

// verifyPragma reports whether pragma name currently reads as want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.Get(&got, "PRAGMA "+name); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s is %q, want %q", name, got, want)
	}
	return nil
}
