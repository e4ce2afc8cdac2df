// Package metadata defines the interface and implementations for NoteStash's
// note catalog, which tracks users, notes, and ratings. Raw file content
// lives in the blob layer; the catalog holds everything else, including which
// blob backend stored each note's content.
package metadata

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/notestash/notestash/internal/blob"
)

// ErrDuplicateEmail is returned by CreateUser when the email is already
// registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrNotFound is returned by delete operations when no row matched.
var ErrNotFound = errors.New("record not found")

// UserRecord represents a registered user.
type UserRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NoteRecord represents the catalog entry for a single uploaded note. The
// file content itself is stored in the blob backend identified by
// BackendKind, under StorageRef.
type NoteRecord struct {
	ID          string
	Department  string
	Semester    int
	Subject     string
	Tag         string
	Filename    string
	ContentType string
	FileSize    int64
	StorageRef  string
	BackendKind blob.Kind
	UploadedBy  string // user ID, empty for legacy ownerless notes
	CreatedAt   time.Time
}

// RatingSummary aggregates the ratings recorded for a note.
type RatingSummary struct {
	Count   int
	Average float64
}

// NoteFilter restricts a note listing. Zero values match everything.
type NoteFilter struct {
	Subject  string
	Semester int
}

// Store defines the interface for all catalog operations required by
// NoteStash. Implementations must be safe for concurrent use.
type Store interface {
	io.Closer

	// Ping checks connectivity to the catalog store.
	Ping(ctx context.Context) error

	// User operations

	// CreateUser creates a new user record. Returns ErrDuplicateEmail if the
	// email is already registered.
	CreateUser(ctx context.Context, user *UserRecord) error

	// GetUser retrieves a user by ID. Returns (nil, nil) when no such user
	// exists.
	GetUser(ctx context.Context, id string) (*UserRecord, error)

	// GetUserByEmail retrieves a user by email. Returns (nil, nil) when no
	// such user exists.
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)

	// UserNames resolves user IDs to display names. IDs with no matching
	// user are absent from the result.
	UserNames(ctx context.Context, ids []string) (map[string]string, error)

	// Note operations

	// CreateNote creates a new note record.
	CreateNote(ctx context.Context, note *NoteRecord) error

	// GetNote retrieves a note by ID. Returns (nil, nil) when no such note
	// exists.
	GetNote(ctx context.Context, id string) (*NoteRecord, error)

	// DeleteNote removes a note record and its ratings. Returns ErrNotFound
	// when no row matched.
	DeleteNote(ctx context.Context, id string) error

	// ListNotes returns notes matching the filter, newest first.
	ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRecord, error)

	// Rating operations

	// UpsertRating records or replaces one user's rating of a note.
	UpsertRating(ctx context.Context, noteID, userID string, score int) error

	// RatingSummaries aggregates ratings for the given note IDs. Notes with
	// no ratings are absent from the result.
	RatingSummaries(ctx context.Context, noteIDs []string) (map[string]RatingSummary, error)
}
