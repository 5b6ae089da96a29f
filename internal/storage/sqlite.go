package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const documentSchemaSQL = `
CREATE TABLE IF NOT EXISTS document (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	body       BLOB NOT NULL,
	revision   INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite implements Provider on a single-row SQLite table. The revision column
// is bumped on every write and checked with a conditional UPDATE.
type SQLite struct {
	conn *sql.DB

	mu   sync.Mutex
	seen int64 // revision last read or written, 0 if none
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY between pooled connections.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(documentSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Read returns the stored document body.
func (s *SQLite) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		body     []byte
		revision int64
	)
	err := s.conn.QueryRowContext(ctx, `SELECT body, revision FROM document WHERE id = 1`).Scan(&body, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: sqlite document: %w", fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: sqlite read: %w", err)
	}
	s.seen = revision
	return body, nil
}

// Write stores data if the persisted revision is still the one last seen.
func (s *SQLite) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM document WHERE id = 1`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if s.seen != 0 {
			return ErrStale
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document (id, body, revision) VALUES (1, ?, 1)`, data); err != nil {
			return fmt.Errorf("storage: sqlite insert: %w", err)
		}
		current = 0
	case err != nil:
		return fmt.Errorf("storage: sqlite revision: %w", err)
	default:
		if s.seen != 0 && current != s.seen {
			return ErrStale
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE document
			SET body = ?, revision = revision + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = 1 AND revision = ?
		`, data, current)
		if err != nil {
			return fmt.Errorf("storage: sqlite update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: sqlite commit: %w", err)
	}
	s.seen = current + 1
	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
