package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultPath = "data/bankcrawler.db"

// Store wraps a SQLite DB connection and implements the pipeline's
// persistence boundary.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{path: ":memory:", db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS banks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	logo TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	schedule_charge_url TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	created TEXT NOT NULL,
	modified TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS data_sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bank_id INTEGER NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	content_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	failed_attempt_count INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	last_crawled_at TEXT,
	last_successful_crawl_at TEXT,
	last_verified_at TEXT,
	created TEXT NOT NULL,
	modified TEXT NOT NULL,
	UNIQUE (bank_id, url)
);

CREATE TABLE IF NOT EXISTS crawl_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data_source_id INTEGER NOT NULL REFERENCES data_sources(id) ON DELETE CASCADE,
	raw_content TEXT NOT NULL DEFAULT '',
	extracted_content TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	structured_json TEXT NOT NULL DEFAULT '',
	comprehensive_json TEXT NOT NULL DEFAULT '',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT NOT NULL DEFAULT '',
	sync_timestamps TEXT NOT NULL DEFAULT '[]',
	crawled_at TEXT NOT NULL,
	modified TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS crawl_records_source_idx
	ON crawl_records(data_source_id, processing_status, crawled_at DESC);

CREATE TABLE IF NOT EXISTS credit_cards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bank_id INTEGER NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	annual_fee REAL NOT NULL DEFAULT 0,
	interest_rate_apr REAL NOT NULL DEFAULT 0,
	lounge_access_international TEXT NOT NULL DEFAULT '',
	lounge_access_domestic TEXT NOT NULL DEFAULT '',
	lounge_access_condition TEXT NOT NULL DEFAULT '',
	cash_advance_fee TEXT NOT NULL DEFAULT '',
	late_payment_fee TEXT NOT NULL DEFAULT '',
	annual_fee_waiver_policy TEXT,
	reward_points_policy TEXT NOT NULL DEFAULT '',
	additional_features TEXT NOT NULL DEFAULT '[]',
	is_active INTEGER NOT NULL DEFAULT 1,
	created TEXT NOT NULL,
	modified TEXT NOT NULL,
	UNIQUE (bank_id, name)
);
`

// CreateTables ensures the full schema exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes everything, newest dependencies first.
func (s *Store) DropTables(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS crawl_records;`,
		`DROP TABLE IF EXISTS credit_cards;`,
		`DROP TABLE IF EXISTS data_sources;`,
		`DROP TABLE IF EXISTS banks;`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func scanTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
