package report

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs the
// schema migration.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			script      TEXT NOT NULL DEFAULT '',
			shell       TEXT NOT NULL DEFAULT '',
			exit_code   INTEGER NOT NULL DEFAULT 0,
			output      TEXT NOT NULL DEFAULT '',
			truncated   INTEGER NOT NULL DEFAULT 0,
			started_at  TEXT NOT NULL,
			duration_ns INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts or replaces rec.
func (s *SQLiteStore) Save(rec *Record) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (id, kind, script, shell, exit_code, output, truncated, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Script, rec.Shell, rec.ExitCode, rec.Output,
		rec.Truncated, rec.StartedAt.UTC().Format(time.RFC3339Nano), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads the record with the given ID.
func (s *SQLiteStore) Load(runID string) (*Record, error) {
	row := s.db.QueryRow(
		"SELECT id, kind, script, shell, exit_code, output, truncated, started_at, duration_ns FROM runs WHERE id = ?",
		runID,
	)

	var (
		rec       Record
		kind      string
		startedAt string
		duration  int64
	)
	err := row.Scan(&rec.ID, &kind, &rec.Script, &rec.Shell, &rec.ExitCode, &rec.Output, &rec.Truncated, &startedAt, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	rec.Kind = Kind(kind)
	rec.Duration = time.Duration(duration)
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("loading run %s: bad started_at: %w", runID, err)
	}
	return &rec, nil
}
