// Package index stores a built catalog in SQLite so it can be queried
// without the source directory or the JSON artifacts.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	key               TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	checksum          TEXT NOT NULL DEFAULT '',
	metadata          TEXT NOT NULL DEFAULT '{}',
	has_attachments   INTEGER NOT NULL DEFAULT 0,
	image_attachments TEXT NOT NULL DEFAULT '[]',
	content           TEXT NOT NULL DEFAULT '',
	raw_html          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_key TEXT NOT NULL,
	tag      TEXT NOT NULL,
	UNIQUE(note_key, tag)
);

CREATE TABLE IF NOT EXISTS folders (
	path               TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	total_unique_files INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS folder_files (
	folder_path TEXT NOT NULL,
	position    INTEGER NOT NULL,
	note_key    TEXT NOT NULL,
	PRIMARY KEY(folder_path, position)
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag);
CREATE INDEX IF NOT EXISTS idx_folder_files_note ON folder_files(note_key);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
