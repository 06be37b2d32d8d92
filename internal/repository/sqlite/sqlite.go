// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - A community site that runs as one process on one machine
// - Backups that are a matter of dumping a handful of tables
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code: no C compiler needed, runs wherever Go runs.
//
// ONE DB, SEVERAL REPOSITORIES:
// *DB implements repository.SnippetRepository and repository.LeaderboardRepository
// directly. Users, votes and comments each have a Create method of their own, so
// they live on small views over the same pool: db.Users(), db.Votes(), db.Comments().
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the query helpers need, so the
// same helper can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/snipshare.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (great for tests, lost on close)
//
// PER-CONNECTION PRAGMAS:
// foreign_keys and busy_timeout are connection settings, not database settings.
// sql.DB is a pool, so running "PRAGMA foreign_keys=ON" once would only configure
// whichever connection happened to run it. The driver's _pragma DSN parameters are
// applied to every connection it opens.
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if !memory {
		// WAL lets readers continue while a write (or a restore) is in progress.
		dsn += "&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new, empty database.
	// Pin the pool to one connection so all queries see the same tables.
	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint
// failure, which the repositories translate into apperror conflicts.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// isConstraintViolation reports whether err is any constraint failure:
// UNIQUE, PRIMARY KEY, FOREIGN KEY, NOT NULL or CHECK.
func isConstraintViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// constraintDetail names the failed constraint for error messages.
func constraintDetail(err error) string {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "constraint failed"
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return "references a missing parent row"
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return "duplicates another row"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return "has a missing required value"
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return "fails a check constraint"
	default:
		return "constraint failed"
	}
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is safe to re-run; columns added after a table
// first shipped go through addColumnIfNotExists so old databases catch up.
func (db *DB) migrate() error {
	// users: github_id is NULL for local accounts, so UNIQUE only applies to
	// real GitHub ids. password_hash is NULL for GitHub-only accounts.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			github_id     INTEGER UNIQUE,
			login         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			email         TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			is_admin      INTEGER NOT NULL DEFAULT 0,
			password_hash TEXT,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT 'text',
			author_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_author_id ON snippets(author_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippet_categories (
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			PRIMARY KEY (snippet_id, name)
		);
		CREATE INDEX IF NOT EXISTS idx_snippet_categories_name ON snippet_categories(name);
	`)
	if err != nil {
		return fmt.Errorf("creating snippet_categories table: %w", err)
	}

	// voter_key is "user:<id>" or "ip:<addr>"; the UNIQUE pair is what makes a
	// second vote from the same voter fail.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS votes (
			id         TEXT PRIMARY KEY,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
			voter_ip   TEXT NOT NULL DEFAULT '',
			voter_key  TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (snippet_id, voter_key)
		);
		CREATE INDEX IF NOT EXISTS idx_votes_snippet_id ON votes(snippet_id);
	`)
	if err != nil {
		return fmt.Errorf("creating votes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id          TEXT PRIMARY KEY,
			snippet_id  TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			author_id   TEXT REFERENCES users(id) ON DELETE SET NULL,
			author_name TEXT NOT NULL,
			body        TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_snippet_created ON comments(snippet_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	// Profile and image columns shipped after the first release.
	if err := db.addColumnIfNotExists("users", "bio", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding bio to users: %w", err)
	}
	if err := db.addColumnIfNotExists("snippets", "image_url", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding image_url to snippets: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent: safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
