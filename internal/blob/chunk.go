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

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 256 << 10

// Chunked implements the Store interface with blob content split into
// fixed-size chunk rows keyed by a generated file id, decoupled from the note
// record. Both writes and reads proceed chunk-by-chunk, bounding peak memory
// independent of content size.
type Chunked struct {
	db        *sql.DB
	chunkSize int
}

// NewChunked creates a chunked blob store backed by the given database file
// path. chunkSize <= 0 selects DefaultChunkSize.
func NewChunked(dbPath string, chunkSize int) (*Chunked, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite chunk database: %w", err)
	}

	s := &Chunked{db: db, chunkSize: chunkSize}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite chunk database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the required tables.
func (s *Chunked) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS chunk_files (
			id           TEXT PRIMARY KEY,
			size         INTEGER NOT NULL,
			chunk_size   INTEGER NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream'
		);

		CREATE TABLE IF NOT EXISTS chunk_data (
			file_id TEXT    NOT NULL,
			seq     INTEGER NOT NULL,
			data    BLOB    NOT NULL,

			PRIMARY KEY (file_id, seq),
			FOREIGN KEY (file_id) REFERENCES chunk_files(id) ON DELETE CASCADE
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating chunk schema: %w", err)
	}
	return nil
}

// Close closes the underlying SQLite database connection.
func (s *Chunked) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Kind reports the backend kind.
func (s *Chunked) Kind() Kind { return KindChunk }

// Put streams content from r into chunk rows inside a single transaction,
// then writes the file row last. The transaction makes the write atomic: a
// reader either sees the complete file or nothing.
func (s *Chunked) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	ref := uid.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("beginning chunk transaction: %w", err)
	}
	defer tx.Rollback()

	var written int64
	buf := make([]byte, s.chunkSize)
	for seq := 0; ; seq++ {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_data (file_id, seq, data) VALUES (?, ?, ?)`,
				ref, seq, buf[:n],
			); err != nil {
				return "", 0, fmt.Errorf("writing chunk %d: %w", seq, err)
			}
			written += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", 0, fmt.Errorf("reading blob data: %w", readErr)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunk_files (id, size, chunk_size, content_type) VALUES (?, ?, ?, ?)`,
		ref, written, s.chunkSize, contentType,
	); err != nil {
		return "", 0, fmt.Errorf("writing chunk file row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("committing chunk transaction: %w", err)
	}

	return ref, written, nil
}

// Get returns a reader that fetches chunk rows lazily in sequence order, so
// large files stream without being materialized.
func (s *Chunked) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx,
		`SELECT size FROM chunk_files WHERE id = ?`, ref,
	).Scan(&size)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("getting chunk file %q: %w", ref, err)
	}

	return &chunkReader{ctx: ctx, db: s.db, fileID: ref}, size, nil
}

// Delete removes the file row; chunk rows go with it via ON DELETE CASCADE.
// Returns ErrNotFound when no file row matched.
func (s *Chunked) Delete(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chunk_files WHERE id = ?`, ref,
	)
	if err != nil {
		return fmt.Errorf("deleting chunk file %q: %w", ref, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck verifies that the SQLite chunk database is operational.
func (s *Chunked) HealthCheck(ctx context.Context) error {
	var n int
	return s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&n)
}

// chunkReader reads chunk rows one at a time in sequence order.
type chunkReader struct {
	ctx    context.Context
	db     *sql.DB
	fileID string
	seq    int
	cur    *bytes.Reader
	done   bool
}

// Read satisfies io.Reader by refilling from the next chunk row whenever the
// current chunk is exhausted.
func (cr *chunkReader) Read(p []byte) (int, error) {
	for {
		if cr.cur != nil && cr.cur.Len() > 0 {
			return cr.cur.Read(p)
		}
		if cr.done {
			return 0, io.EOF
		}

		var data []byte
		err := cr.db.QueryRowContext(cr.ctx,
			`SELECT data FROM chunk_data WHERE file_id = ? AND seq = ?`,
			cr.fileID, cr.seq,
		).Scan(&data)
		if err == sql.ErrNoRows {
			cr.done = true
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("reading chunk %d of %q: %w", cr.seq, cr.fileID, err)
		}
		cr.seq++
		cr.cur = bytes.NewReader(data)
	}
}

// Close satisfies io.Closer. The reader holds no resources beyond the shared
// database handle.
func (cr *chunkReader) Close() error {
	cr.done = true
	cr.cur = nil
	return nil
}
