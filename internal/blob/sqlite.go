package blob

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/notestash/notestash/internal/uid"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLite implements the Store interface with blob content held as a single
// BLOB column in SQLite. Simplest possible consistency (one INSERT covers the
// whole write) at the cost of materializing content in memory, which makes it
// suitable for small-to-medium files in single-node deployments.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a SQLite blob store backed by the given database file
// path. It opens the database, applies performance PRAGMAs, and creates the
// required table.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite blob database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite blob database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the required table.
func (s *SQLite) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS blobs (
			ref          TEXT PRIMARY KEY,
			data         BLOB NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream'
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating blob schema: %w", err)
	}
	return nil
}

// Close closes the underlying SQLite database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Kind reports the backend kind.
func (s *SQLite) Kind() Kind { return KindSQLite }

// Put reads all data from r and stores it as a single BLOB row. The write is
// one INSERT, so a partial blob is never visible.
func (s *SQLite) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("reading blob data: %w", err)
	}

	ref := uid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blobs (ref, data, content_type) VALUES (?, ?, ?)`,
		ref, data, contentType,
	)
	if err != nil {
		return "", 0, fmt.Errorf("putting blob %q: %w", ref, err)
	}

	return ref, int64(len(data)), nil
}

// Get retrieves the blob row and returns an io.NopCloser wrapping a
// bytes.Reader for the data.
func (s *SQLite) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE ref = ?`, ref,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("getting blob %q: %w", ref, err)
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Delete removes the blob row. Returns ErrNotFound when no row matched.
func (s *SQLite) Delete(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE ref = ?`, ref,
	)
	if err != nil {
		return fmt.Errorf("deleting blob %q: %w", ref, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck verifies that the SQLite blob database is operational by
// executing a simple query.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	var n int
	return s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&n)
}
