// Package store owns the SQLite handle backing the graph: connection setup,
// schema migration and classification of driver failures.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

const (
	DefaultPath        = "opsgraph.db"
	DefaultBusyTimeout = 5 * time.Second
	MemoryPath         = ":memory:"
)

type Options struct {
	Path        string
	BusyTimeout time.Duration
}

type Store struct {
	db   *sql.DB
	path string
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id   TEXT PRIMARY KEY,
		role TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id       TEXT PRIMARY KEY,
		label    TEXT NOT NULL,
		category TEXT NOT NULL,
		type     TEXT NOT NULL,
		data     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		id     TEXT PRIMARY KEY,
		source TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		label  TEXT NOT NULL DEFAULT '',
		data   TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_source_target ON edges(source, target)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target)`,
	`CREATE TABLE IF NOT EXISTS status (
		node_id    TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
		status     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		author     TEXT NOT NULL,
		data       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_nodes (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		node_id    TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		PRIMARY KEY (project_id, node_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		old_data    TEXT,
		new_data    TEXT,
		actor_id    TEXT NOT NULL,
		actor_ip    TEXT NOT NULL,
		created_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit(created_at, id)`,
	`INSERT OR IGNORE INTO users (id, role) VALUES ('admin', 'admin')`,
}

// Open connects to the database at opts.Path, enabling foreign keys on the
// connection, and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultPath
	}
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}
	if path != MemoryPath {
		if parent := filepath.Dir(path); parent != "." && parent != "" {
			if err := os.MkdirAll(parent, 0o750); err != nil {
				return nil, coreerrors.Storage(err, "create database directory")
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		dsnPathEscaper.Replace(path), timeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, coreerrors.Storage(err, "open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Classify(err, "ping database")
	}
	store := &Store{db: db, path: path}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// dsnPathEscaper percent-encodes the characters that would end the path
// part of a SQLite file: URI.
var dsnPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func (s *Store) migrate(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return Classify(err, "migrate schema")
		}
	}
	return nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Classify maps a driver error onto the error taxonomy. Uniqueness violations
// become conflicts, foreign key violations become not found, busy or locked
// databases are retryable storage failures.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if coreerrors.CategoryOf(err) != "" {
		return err
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	var driverErr *sqlite.Error
	if !errors.As(err, &driverErr) {
		return coreerrors.Wrap(wrapped, coreerrors.CategoryStorageFailure, coreerrors.CodeStorageFailure, "inspect the database file and retry", false)
	}
	message := strings.ToUpper(driverErr.Error())
	switch code := driverErr.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(message, "FOREIGN KEY"):
		return coreerrors.Wrap(wrapped, coreerrors.CategoryNotFound, coreerrors.CodeNotFound, "referenced entity does not exist", false)
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(message, "UNIQUE"):
		return coreerrors.Wrap(wrapped, coreerrors.CategoryConflict, coreerrors.CodeDuplicate, "an entity with the same key already exists", false)
	case code&0xff == sqlite3.SQLITE_BUSY || code&0xff == sqlite3.SQLITE_LOCKED:
		return coreerrors.Wrap(wrapped, coreerrors.CategoryStorageFailure, coreerrors.CodeStorageBusy, "retry after the concurrent writer finishes", true)
	default:
		return coreerrors.Wrap(wrapped, coreerrors.CategoryStorageFailure, coreerrors.CodeStorageFailure, "inspect the database file and retry", false)
	}
}
