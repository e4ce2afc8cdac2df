package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/notestash/notestash/internal/blob"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// PostgresStore implements the Store interface using PostgreSQL, for
// deployments where the catalog must be shared across app instances.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore with the given DSN and
// initializes the database schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening PostgreSQL database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing PostgreSQL database: %w", err)
	}
	return s, nil
}

// initDB creates the required tables and indexes. Safe to call multiple
// times (idempotent via IF NOT EXISTS).
func (s *PostgresStore) initDB() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notes (
			id           TEXT PRIMARY KEY,
			department   TEXT NOT NULL,
			semester     INTEGER NOT NULL,
			subject      TEXT NOT NULL,
			tag          TEXT NOT NULL DEFAULT '',
			filename     TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
			file_size    BIGINT NOT NULL,
			storage_ref  TEXT NOT NULL,
			backend_kind TEXT NOT NULL,
			uploaded_by  TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notes_subject ON notes(subject);
		CREATE INDEX IF NOT EXISTS idx_notes_semester ON notes(semester);
		CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);

		CREATE TABLE IF NOT EXISTS ratings (
			note_id  TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			user_id  TEXT NOT NULL,
			score    INTEGER NOT NULL,
			rated_at TIMESTAMPTZ NOT NULL,

			PRIMARY KEY (note_id, user_id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks connectivity to the PostgreSQL database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- User operations ----

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, user *UserRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC(),
	)
	if err != nil {
		// 23505 is unique_violation.
		if strings.Contains(err.Error(), "23505") ||
			strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("creating user %q: %w", user.Email, err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	return scanPGUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users WHERE email = $1`,
		email,
	)
	return scanPGUser(row)
}

func scanPGUser(row *sql.Row) (*UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// UserNames resolves user IDs to display names.
func (s *PostgresStore) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM users WHERE id = ANY($1)`,
		ids,
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
func (s *PostgresStore) CreateNote(ctx context.Context, note *NoteRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, department, semester, subject, tag, filename,
			content_type, file_size, storage_ref, backend_kind, uploaded_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
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
		note.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating note %q: %w", note.ID, err)
	}
	return nil
}

// GetNote retrieves a note by ID.
func (s *PostgresStore) GetNote(ctx context.Context, id string) (*NoteRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, department, semester, subject, tag, filename,
			content_type, file_size, storage_ref, backend_kind, uploaded_by, created_at
		 FROM notes WHERE id = $1`,
		id,
	)

	var n NoteRecord
	var backendKind string
	err := row.Scan(&n.ID, &n.Department, &n.Semester, &n.Subject, &n.Tag,
		&n.Filename, &n.ContentType, &n.FileSize, &n.StorageRef,
		&backendKind, &n.UploadedBy, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting note %q: %w", id, err)
	}
	n.BackendKind = blob.Kind(backendKind)
	return &n, nil
}

// DeleteNote removes a note record. Ratings go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1`, id,
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
func (s *PostgresStore) ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRecord, error) {
	query := `SELECT id, department, semester, subject, tag, filename,
			content_type, file_size, storage_ref, backend_kind, uploaded_by, created_at
		FROM notes`

	var conds []string
	var args []any
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		conds = append(conds, fmt.Sprintf("subject = $%d", len(args)))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		conds = append(conds, fmt.Sprintf("semester = $%d", len(args)))
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
		var backendKind string
		if err := rows.Scan(&n.ID, &n.Department, &n.Semester, &n.Subject, &n.Tag,
			&n.Filename, &n.ContentType, &n.FileSize, &n.StorageRef,
			&backendKind, &n.UploadedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.BackendKind = blob.Kind(backendKind)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ---- Rating operations ----

// UpsertRating records or replaces one user's rating of a note.
func (s *PostgresStore) UpsertRating(ctx context.Context, noteID, userID string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (note_id, user_id, score, rated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (note_id, user_id) DO UPDATE SET score = EXCLUDED.score, rated_at = EXCLUDED.rated_at`,
		noteID, userID, score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("rating note %q: %w", noteID, err)
	}
	return nil
}

// RatingSummaries aggregates ratings for the given note IDs.
func (s *PostgresStore) RatingSummaries(ctx context.Context, noteIDs []string) (map[string]RatingSummary, error) {
	summaries := make(map[string]RatingSummary, len(noteIDs))
	if len(noteIDs) == 0 {
		return summaries, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, COUNT(*), AVG(score)
		 FROM ratings WHERE note_id = ANY($1)
		 GROUP BY note_id`,
		noteIDs,
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

var _ Store = (*PostgresStore)(nil)
