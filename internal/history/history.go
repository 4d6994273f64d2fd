// Package history keeps a SQLite journal of publications and tracks the
// checksums of vault documents so that edits made after a publish can be
// reported.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS publications (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	remote_path  TEXT NOT NULL,
	local_path   TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	sha          TEXT NOT NULL DEFAULT '',
	checksum     TEXT NOT NULL DEFAULT '',
	created      INTEGER NOT NULL DEFAULT 0,
	published_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_publications_local ON publications(local_path);
CREATE INDEX IF NOT EXISTS idx_publications_remote ON publications(remote_path);

CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with history-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
