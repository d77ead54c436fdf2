// Package journal keeps a durable record of handled print jobs in a
// local SQLite database, for the admin endpoints and postmortems. The
// proxy works fine with the journal disabled; nothing in the print path
// depends on it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound reports a job id the journal has no record of.
var ErrNotFound = errors.New("journal: job not found")

// Entry is one handled job.
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Origin     string    `json:"origin"`
	Rasters    int       `json:"rasters"`
	Pulses     int       `json:"pulses"`
	Bytes      int       `json:"bytes"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// Journal is a handle to the job database. Safe for concurrent use.
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	received_at DATETIME NOT NULL,
	origin TEXT NOT NULL DEFAULT '',
	rasters INTEGER NOT NULL DEFAULT 0,
	pulses INTEGER NOT NULL DEFAULT 0,
	payload_bytes INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_received_at ON jobs(received_at);
`

// Open creates or opens the journal database at path and ensures the
// schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record inserts one job entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO jobs (id, received_at, origin, rasters, pulses, payload_bytes, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ReceivedAt, e.Origin, e.Rasters, e.Pulses, e.Bytes, e.Outcome, e.Error)
	if err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. A non-positive
// limit defaults to 100.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, received_at, origin, rasters, pulses, payload_bytes, outcome, error
		 FROM jobs ORDER BY received_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ReceivedAt, &e.Origin, &e.Rasters, &e.Pulses, &e.Bytes, &e.Outcome, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one entry by job id.
func (j *Journal) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := j.db.QueryRowContext(ctx,
		`SELECT id, received_at, origin, rasters, pulses, payload_bytes, outcome, error
		 FROM jobs WHERE id = ?`, id).
		Scan(&e.ID, &e.ReceivedAt, &e.Origin, &e.Rasters, &e.Pulses, &e.Bytes, &e.Outcome, &e.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &e, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
