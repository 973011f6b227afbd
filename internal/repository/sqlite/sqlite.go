// Package sqlite implements the repository interfaces on an embedded SQLite
// database.
//
// The driver is modernc.org/sqlite — a pure-Go translation of SQLite, so no
// CGo and no C toolchain, which keeps cross-compilation painless. The blank
// import below registers it with database/sql under the name "sqlite".
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and carries the repository methods.
// One DB value serves all three repositories (users, snippets, executions);
// the server owns its lifecycle and closes it on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens the database, applies the connection pragmas, and runs
// migrations.
//
// dbPath is either a file path ("data/codebench.db") or ":memory:" for an
// in-memory database, which the tests use.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and every pooled connection to
	// ":memory:" would otherwise get its own empty database. A single
	// connection serves both cases correctly.
	conn.SetMaxOpenConns(1)

	// Force a real connection now so a bad path fails here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — without it SQLite
	// locks the whole file per write, which stalls a concurrent HTTP server.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default for backwards compatibility; we want referential
	// integrity between users, snippets, and executions.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always deferred wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent; a real migration tracker is overkill for a three-table schema.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id         TEXT PRIMARY KEY,
			user_id    TEXT REFERENCES users(id),
			name       TEXT NOT NULL,
			language   TEXT NOT NULL DEFAULT 'python',
			code       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_user_id ON snippets(user_id);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	// exit_code is nullable on purpose: a run that never spawned a process
	// or was killed on timeout has no exit status.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id           TEXT PRIMARY KEY,
			user_id      TEXT REFERENCES users(id),
			language     TEXT NOT NULL,
			succeeded    INTEGER NOT NULL,
			failure_kind TEXT NOT NULL DEFAULT 'none',
			exit_code    INTEGER,
			duration_ms  INTEGER NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_executions_user_id ON executions(user_id);
		CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating executions table: %w", err)
	}

	return nil
}
