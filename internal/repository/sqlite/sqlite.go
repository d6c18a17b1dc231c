// Package sqlite implements the repository interfaces on SQLite through sqlx.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. Pragmas are passed in the DSN so that every
// connection the pool opens gets them, and the pool is capped at one
// connection: SQLite allows a single writer anyway, and ":memory:" databases
// exist per connection.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
)

const driverName = "sqlite"

//go:embed schema.sql
var schema string

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
	// SQLite's lower() only folds ASCII.
	msqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, foldText)
}

// DB wraps the sqlx pool and implements every repository interface.
type DB struct {
	conn *sqlx.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. ":memory:" gives a private in-memory database, which tests use.
func New(dbPath string) (*DB, error) {
	dsn, err := buildDSN(dbPath)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// newWithConn wraps an existing handle without migrating. Tests pass a
// go-sqlmock connection here to drive failure paths.
func newWithConn(conn *sql.DB) *DB {
	return &DB{conn: sqlx.NewDb(conn, driverName)}
}

func buildDSN(dbPath string) (string, error) {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Set("_time_format", "sqlite")
	params.Set("_txlock", "immediate")

	if dbPath == ":memory:" {
		return "file::memory:?" + params.Encode(), nil
	}

	params.Add("_pragma", "journal_mode(WAL)")
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("sqlite: creating %s: %w", dir, err)
		}
	}
	return "file:" + dbPath + "?" + params.Encode(), nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return nil
}

// Ping reports whether the database answers; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// withTx runs fn inside a transaction, rolling back if fn or the commit fails.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(op+": beginning transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(op+": committing", err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
