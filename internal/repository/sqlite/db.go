package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/phellister/patient-record-access-system/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS hospitals (
	id INTEGER PRIMARY KEY,
	record BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS doctors (
	id INTEGER PRIMARY KEY,
	record BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS patients (
	id INTEGER PRIMARY KEY,
	record BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS id_counter (
	id INTEGER PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS outbox_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	payload BLOB NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	retry_at INTEGER,
	created_at INTEGER NOT NULL,
	processed_at INTEGER
);
`

// NewDB opens (or creates) the record store. The pool is capped at a single
// connection: the store is a single-writer substrate and every read-then-write
// sequence must stay serialized.
func NewDB(cfg config.StorageConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		return nil, fmt.Errorf("failed to configure record store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create record tables: %w", err)
	}

	// Seed the allocator cell; a restart keeps the existing counter.
	if _, err := db.Exec(`INSERT INTO id_counter (id, value) VALUES (0, 0) ON CONFLICT(id) DO NOTHING`); err != nil {
		return nil, fmt.Errorf("failed to seed id counter: %w", err)
	}

	return db, nil
}
