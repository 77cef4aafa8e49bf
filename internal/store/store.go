// Package store provides the SQLite-backed diary store: users, their
// settings, and one diary entry per (user, calendar date).
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	user_id            INTEGER PRIMARY KEY,
	username           TEXT,
	first_name         TEXT,
	last_name          TEXT,
	language_code      TEXT NOT NULL DEFAULT 'ru',
	timezone           TEXT NOT NULL DEFAULT 'Europe/Moscow',
	last_reminder_date TEXT,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_activity      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS diary_entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	entry_date TEXT NOT NULL,
	mood       TEXT,
	weather    TEXT,
	location   TEXT,
	events     TEXT,
	notes      TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (user_id) ON DELETE CASCADE,
	CONSTRAINT unique_user_date UNIQUE (user_id, entry_date)
);

CREATE INDEX IF NOT EXISTS idx_diary_entries_user_date
	ON diary_entries (user_id, entry_date DESC);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id          INTEGER PRIMARY KEY,
	reminder_time    TEXT NOT NULL DEFAULT '21:00',
	reminder_enabled INTEGER NOT NULL DEFAULT 0,
	export_format    TEXT NOT NULL DEFAULT 'markdown',
	date_format      TEXT NOT NULL DEFAULT 'DD.MM.YYYY',
	FOREIGN KEY (user_id) REFERENCES users (user_id) ON DELETE CASCADE
);
`

// DB wraps a sql.DB with diary-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping verifies the database connection, for readiness checks.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
