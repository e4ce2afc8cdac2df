package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/notestash/notestash/internal/blob"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const (
	// timeFormat is the ISO 8601 format used for all timestamps in SQLite.
	timeFormat = "2006-01-02T15:04:05.000Z"
)

// SQLiteStore implements the Store interface using SQLite as the backing
// database. It provides durable, ACID-compliant catalog storage suitable for
// single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given DSN and initializes
// the database schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the required tables and indexes.
// This is safe to call multiple times (idempotent via IF NOT EXISTS).
func (s *SQLiteStore) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notes (
			id           TEXT PRIMARY KEY,
			department   TEXT NOT NULL,
			semester     INTEGER NOT NULL,
			subject      TEXT NOT NULL,
			tag          TEXT NOT NULL DEFAULT '',
			filename     TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
			file_size    INTEGER NOT NULL,
			storage_ref  TEXT NOT NULL,
			backend_kind TEXT NOT NULL,
			uploaded_by  TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject);
		CREATE INDEX IF NOT EXISTS idx_notes_semester ON notes(semester);
		CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);

		CREATE TABLE IF NOT EXISTS ratings (
			note_id  TEXT NOT NULL,
			user_id  TEXT NOT NULL,
			score    INTEGER NOT NULL,
			rated_at TEXT NOT NULL,

			PRIMARY KEY (note_id, user_id),
			FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks connectivity to the SQLite database.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- User operations ----

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *UserRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("creating user %q: %w", user.Email, err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*UserRecord, error) {
	var u UserRecord
	var createdAtStr string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
	return &u, nil
}

// UserNames resolves user IDs to display names.
func (s *SQLiteStore) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM users WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning user name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// ---- Note operations ----

// CreateNote creates a new note record.
func (s *SQLiteStore) CreateNote(ctx context.Context, note *NoteRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, department, semester, subject, tag, filename,
			content_type, file_size, storage_ref, backend_kind, uploaded_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.Department,
		note.Semester,
		note.Subject,
		note.Tag,
		note.Filename,
		note.ContentType,
		note.FileSize,
		note.StorageRef,
		string(note.BackendKind),
		note.UploadedBy,
		note.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("creating note %q: %w", note.ID, err)
	}
	return nil
}

// GetNote retrieves a note by ID.
func (s *SQLiteStore) GetNote(ctx context.Context, id string) (*NoteRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, department, semester, subject, tag, filename,
			content_type, file_size, storage_ref, backend_kind, uploaded_by, created_at
		 FROM notes WHERE id = ?`,
		id,
	)

	var n NoteRecord
	var backendKind, createdAtStr string
	err := row.Scan(&n.ID, &n.Department, &n.Semester, &n.Subject, &n.Tag,
		&n.Filename, &n.ContentType, &n.FileSize, &n.StorageRef,
		&backendKind, &n.UploadedBy, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting note %q: %w", id, err)
	}
	n.BackendKind = blob.Kind(backendKind)
	n.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
	return &n, nil
}

// DeleteNote removes a note record. Ratings go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting note %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNotes returns notes matching the filter, newest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRecord, error) {
	query := `SELECT id, department, semester, subject, tag, filename,
			content_type, file_size, storage_ref, backend_kind, uploaded_by, created_at
		FROM notes`

	var conds []string
	var args []any
	if filter.Subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.Semester > 0 {
		conds = append(conds, "semester = ?")
		args = append(args, filter.Semester)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var notes []NoteRecord
	for rows.Next() {
		var n NoteRecord
		var backendKind, createdAtStr string
		if err := rows.Scan(&n.ID, &n.Department, &n.Semester, &n.Subject, &n.Tag,
			&n.Filename, &n.ContentType, &n.FileSize, &n.StorageRef,
			&backendKind, &n.UploadedBy, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.BackendKind = blob.Kind(backendKind)
		n.CreatedAt, _ = time.Parse(timeFormat, createdAtStr)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ---- Rating operations ----

// UpsertRating records or replaces one user's rating of a note.
func (s *SQLiteStore) UpsertRating(ctx context.Context, noteID, userID string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (note_id, user_id, score, rated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (note_id, user_id) DO UPDATE SET score = excluded.score, rated_at = excluded.rated_at`,
		noteID, userID, score, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("rating note %q: %w", noteID, err)
	}
	return nil
}

// RatingSummaries aggregates ratings for the given note IDs.
func (s *SQLiteStore) RatingSummaries(ctx context.Context, noteIDs []string) (map[string]RatingSummary, error) {
	summaries := make(map[string]RatingSummary, len(noteIDs))
	if len(noteIDs) == 0 {
		return summaries, nil
	}

	placeholders := strings.Repeat("?,", len(noteIDs)-1) + "?"
	args := make([]any, len(noteIDs))
	for i, id := range noteIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, COUNT(*), AVG(score)
		 FROM ratings WHERE note_id IN (`+placeholders+`)
		 GROUP BY note_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var sum RatingSummary
		if err := rows.Scan(&id, &sum.Count, &sum.Average); err != nil {
			return nil, fmt.Errorf("scanning rating summary: %w", err)
		}
		summaries[id] = sum
	}
	return summaries, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
