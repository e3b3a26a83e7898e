// Package sqlite provides the local SQLite database used to cache
// in-progress application drafts.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and foreign keys
// enabled, and ensures the schema exists.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Single-writer SQLite
	db.SetMaxOpenConns(1)

	wrapped := &DB{DB: db}
	if err := wrapped.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return wrapped, nil
}

func (db *DB) ensureSchema() error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		id         TEXT PRIMARY KEY,
		plan_id    INTEGER NOT NULL,
		email      TEXT NOT NULL,
		values_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (plan_id, email)
	)`)
	if err != nil {
		return fmt.Errorf("create drafts table: %w", err)
	}
	return nil
}
