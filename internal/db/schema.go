package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT,
    finished_at TEXT,
    inputs TEXT,
    records INTEGER,
    skipped INTEGER,
    duplicates INTEGER,
    units INTEGER,
    review_items INTEGER,
    status TEXT
);

CREATE TABLE IF NOT EXISTS training_units (
    id INTEGER PRIMARY KEY,
    run_id TEXT,
    thread_id TEXT,
    split TEXT,
    prompt TEXT,
    response TEXT,
    token_count INTEGER,
    timestamp TEXT
);

CREATE INDEX IF NOT EXISTS idx_training_units_split ON training_units(split);

CREATE TABLE IF NOT EXISTS exemplars (
    id TEXT PRIMARY KEY,
    thread_id TEXT,
    timestamp TEXT,
    split TEXT,
    prompt TEXT,
    text TEXT,
    embedding BLOB
);

CREATE TABLE IF NOT EXISTS review_queue (
    id INTEGER PRIMARY KEY,
    run_id TEXT,
    thread_id TEXT,
    timestamp TEXT,
    reason TEXT
);

CREATE TABLE IF NOT EXISTS audit_events (
    id INTEGER PRIMARY KEY,
    at TEXT,
    action TEXT,
    details TEXT
);
`

var tables = map[string]bool{
	"runs":           true,
	"training_units": true,
	"exemplars":      true,
	"review_queue":   true,
	"audit_events":   true,
}

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
