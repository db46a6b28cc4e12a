package deliverylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    ts_ms INTEGER NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL DEFAULT '',
    layer TEXT NOT NULL,
    hook TEXT NOT NULL DEFAULT '',
    elapsed_ms INTEGER NOT NULL DEFAULT 0,
    retry_attempt INTEGER NOT NULL DEFAULT 0,
    destination TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    message_length INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_attempts_ts ON attempts(ts_ms DESC);
`

// SQLiteStore is a Store backed by a SQLite file, trimmed to the newest
// max rows on overflow.
type SQLiteStore struct {
	db  *sql.DB
	max int
}

// OpenSQLite opens (creating if needed) the attempt log at path.
func OpenSQLite(ctx context.Context, path string, maxEntries int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create delivery log directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open delivery log: %w", err)
	}
	// The daemon writes while CLI commands read; one connection per process.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init delivery log schema: %w", err)
	}
	return &SQLiteStore{db: db, max: maxEntries}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO attempts (id, ts_ms, session_id, content_hash, layer, hook, elapsed_ms,
    retry_attempt, destination, outcome, message_length, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Timestamp.UnixMilli(), a.SessionID, a.ContentHash, string(a.Layer), a.Hook,
		a.ElapsedMs, a.RetryAttempt, a.Destination, string(a.Outcome), a.MessageLength, a.Error)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if s.max <= 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&count); err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if count <= s.max {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE seq NOT IN (SELECT seq FROM attempts ORDER BY seq DESC LIMIT ?)`, s.max)
	if err != nil {
		return fmt.Errorf("trim attempts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Attempt, error) {
	if n <= 0 {
		n = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts_ms, session_id, content_hash, layer, hook, elapsed_ms, retry_attempt,
    destination, outcome, message_length, error
FROM attempts ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a              Attempt
			tsMs           int64
			layer, outcome string
		)
		if err := rows.Scan(&a.ID, &tsMs, &a.SessionID, &a.ContentHash, &layer, &a.Hook,
			&a.ElapsedMs, &a.RetryAttempt, &a.Destination, &outcome, &a.MessageLength, &a.Error); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Timestamp = time.UnixMilli(tsMs)
		a.Layer = Layer(layer)
		a.Outcome = Outcome(outcome)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("close delivery log: %w", err)
	}
	return nil
}
