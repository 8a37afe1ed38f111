// Package journal keeps a write-behind SQLite log of settled transactions.
//
// The journal is observability plumbing, not durable queuing: the dispatcher
// behaves identically with or without it, and losing the database never
// affects queue state.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tranqhq/tranq/internal/dispatch"
)

// Journal records dispatcher settlements into a txn_log table.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and ensures
// the txn_log table exists.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(pctx, `
CREATE TABLE IF NOT EXISTS txn_log (
  id          TEXT PRIMARY KEY,
  status      TEXT NOT NULL,
  payload     JSON,
  enqueued_at TEXT NOT NULL,
  settled_at  TEXT NOT NULL,
  last_error  TEXT
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create txn_log: %w", err)
	}
	if _, err := db.ExecContext(pctx,
		"CREATE INDEX IF NOT EXISTS idx_txn_log_settled_at ON txn_log(settled_at);"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index txn_log: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one settlement row. Implements dispatch.Journal.
func (j *Journal) Record(ctx context.Context, s dispatch.Settlement) error {
	if s.ID == "" {
		return fmt.Errorf("settlement id is empty")
	}

	var payload any
	if len(s.Payload) > 0 {
		payload = string(s.Payload)
	}
	var lastError any
	if s.LastError != "" {
		lastError = s.LastError
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO txn_log(id, status, payload, enqueued_at, settled_at, last_error)
VALUES(?, ?, ?, ?, ?, ?);
`, s.ID, string(s.Status), payload,
		s.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		s.SettledAt.UTC().Format(time.RFC3339Nano),
		lastError)
	if err != nil {
		return fmt.Errorf("insert txn_log: %w", err)
	}
	return nil
}

// Entry is one journal row, newest settlements first in Recent results.
type Entry struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	SettledAt  time.Time       `json:"settled_at"`
	LastError  *string         `json:"last_error,omitempty"`
}

// Recent returns up to limit settlements, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, status, payload, enqueued_at, settled_at, last_error
FROM txn_log
ORDER BY settled_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query txn_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			payload     sql.NullString
			enqueuedAtS string
			settledAtS  string
			lastError   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Status, &payload, &enqueuedAtS, &settledAtS, &lastError); err != nil {
			return nil, fmt.Errorf("scan txn_log: %w", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAtS); err == nil {
			e.EnqueuedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, settledAtS); err == nil {
			e.SettledAt = t
		}
		if lastError.Valid {
			e.LastError = &lastError.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
