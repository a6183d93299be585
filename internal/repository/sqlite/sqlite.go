// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the server builds
// without a C toolchain. Pass ":memory:" as the path for an in-memory database
// (used by the tests).
//
// The pool is limited to a single connection. SQLite allows one writer at a
// time anyway, and with one connection an in-memory database is shared by
// every query instead of each pooled connection getting its own empty copy.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/cmdshift-learn/internal/keylock"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn  *sql.DB
	locks *keylock.Locker
	now   func() time.Time
}

// queryer is the subset of *sql.DB and *sql.Tx the repository methods need,
// so the same helpers run inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and runs migrations.
//
//   - "data/progress.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn:  conn,
		locks: keylock.New(),
		now:   time.Now,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// SetClock overrides time.Now for timestamps the store assigns. Tests only.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates tables with CREATE TABLE IF NOT EXISTS, so it is safe to run
// on every start.
//
// Profiles keep their scalar fields in columns for querying and the complete
// record in the JSON data column, which is what reads decode. Timestamps are
// stored as unix milliseconds so range comparisons are plain integer
// comparisons.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT PRIMARY KEY,
			external_uid TEXT NOT NULL UNIQUE,
			email        TEXT NOT NULL DEFAULT '',
			xp           INTEGER NOT NULL DEFAULT 0,
			level        INTEGER NOT NULL DEFAULT 1,
			data         TEXT NOT NULL,
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_xp ON profiles(xp);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			event_type  TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_user_created ON events(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS content_items (
			id         TEXT NOT NULL,
			kind       TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			xp         INTEGER NOT NULL DEFAULT 0,
			difficulty TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (kind, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating content_items table: %w", err)
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
