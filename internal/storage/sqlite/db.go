// ABOUTME: Connection handling for the SQLite corpus: data paths, driver DSNs and schema versioning
// ABOUTME: modernc.org/sqlite is the default driver; -tags cgo_sqlite swaps in mattn/go-sqlite3
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appDir = "bible-chat"

// MemoryPath is the Path of databases created by OpenInMemory
const MemoryPath = ":memory:"

// DB is an open corpus database whose schema is at SchemaVersion
type DB struct {
	conn *sql.DB
	path string
}

// DefaultDataDir is $XDG_DATA_HOME/bible-chat. The variable is read on each
// call because xdg caches its values at init.
func DefaultDataDir() string {
	base := xdg.DataHome
	if env := os.Getenv("XDG_DATA_HOME"); env != "" {
		base = env
	}
	return filepath.Join(base, appDir)
}

// DefaultDBPath is corpus.db inside DefaultDataDir
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "corpus.db")
}

// DriverType is "purego" or "cgo" depending on build tags
func DriverType() string {
	return driverType
}

// Open opens the corpus file at path, creating it and its parent
// directories when missing, and brings the schema up to date.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return connect(ctx, fileDSN(path), path, 0)
}

// OpenInMemory returns an empty corpus that lives as long as the DB
func OpenInMemory() (*DB, error) {
	// each pooled connection to :memory: would be its own database
	return connect(context.Background(), memoryDSN(), MemoryPath, 1)
}

func connect(ctx context.Context, dsn, path string, maxOpen int) (*DB, error) {
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if maxOpen > 0 {
		conn.SetMaxOpenConns(maxOpen)
	}

	db := &DB{conn: conn, path: path}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}

// migrate applies the schema and book seed in one transaction. Databases
// written by a newer build are refused rather than downgraded.
func (db *DB) migrate(ctx context.Context) error {
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	if err := seedBooks(ctx, tx); err != nil {
		return fmt.Errorf("seeding books: %w", err)
	}
	if version < SchemaVersion {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	}
	return tx.Commit()
}

// SchemaVersion reads PRAGMA user_version; 0 means a fresh file
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Path is the file path, or MemoryPath
func (db *DB) Path() string { return db.path }

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}
