// Package blob defines the interface and implementations for NoteStash's
// file content storage layer.
package blob

import (
	"context"
	"errors"
	"io"
)

// Kind identifies which blob backend produced a storage ref. Every note
// records the Kind of the backend that stored its content so retrieval can
// dispatch correctly even after the deployment switches to a different
// backend for new uploads.
type Kind string

const (
	// KindLocal stores blobs as files under a root directory.
	KindLocal Kind = "local"
	// KindSQLite stores blobs as a single BLOB column in SQLite.
	KindSQLite Kind = "sqlite"
	// KindChunk stores blobs as fixed-size chunk rows in SQLite.
	KindChunk Kind = "chunk"
	// KindS3 stores blobs in an AWS S3 (or S3-compatible) bucket.
	KindS3 Kind = "s3"
	// KindGCS stores blobs in a Google Cloud Storage bucket.
	KindGCS Kind = "gcs"
	// KindAzure stores blobs in an Azure Blob Storage container.
	KindAzure Kind = "azure"
	// KindMemory keeps blobs in process memory. Tests only.
	KindMemory Kind = "memory"
)

// ErrNotFound is returned by Get and Delete when no blob exists under the
// given ref. Callers treat it as a distinct condition from backend failure:
// a delete of an already-absent blob is harmless, a failed delete is not.
var ErrNotFound = errors.New("blob not found")

// Store defines the interface for reading and writing raw note content.
// Implementations provide the underlying storage mechanism (local filesystem,
// database rows, cloud object storage). All methods must be safe for
// concurrent use.
//
// Content-type and extension validation is the caller's job; a Store accepts
// whatever bytes it is handed. The note catalog is the authoritative holder
// of content type and display filename; Get returns bytes and size only.
type Store interface {
	// Put persists the content read from r and returns an opaque ref that
	// resolves only against this backend, plus the number of bytes written.
	// Put is atomic from the caller's perspective: either a complete,
	// readable blob exists afterward, or none does. size is a hint (-1 when
	// unknown); suggestedName influences human-readable refs where the
	// backend has them and is otherwise ignored.
	Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (ref string, written int64, err error)

	// Get opens the blob under ref for reading. The caller is responsible
	// for closing the returned ReadCloser. Returns ErrNotFound if no blob
	// exists under ref.
	Get(ctx context.Context, ref string) (io.ReadCloser, int64, error)

	// Delete removes the blob under ref. Returns ErrNotFound if no blob
	// exists under ref; any other error is a backend failure.
	Delete(ctx context.Context, ref string) error

	// Kind reports which backend implementation this store is.
	Kind() Kind

	// HealthCheck verifies that the backend is operational.
	HealthCheck(ctx context.Context) error
}

// Registry maps backend kinds to constructed stores so note retrieval can
// dispatch on the backendKind recorded per note. The active store receives
// all new uploads; additional stores keep historical refs readable after a
// backend migration.
type Registry struct {
	active Kind
	stores map[Kind]Store
}

// NewRegistry creates a Registry with the given store active for uploads.
func NewRegistry(active Store) *Registry {
	r := &Registry{
		active: active.Kind(),
		stores: make(map[Kind]Store),
	}
	r.stores[active.Kind()] = active
	return r
}

// Add registers an additional store for read/delete dispatch. Adding a store
// for the active kind replaces it.
func (r *Registry) Add(s Store) {
	r.stores[s.Kind()] = s
}

// Active returns the store receiving new uploads.
func (r *Registry) Active() Store {
	return r.stores[r.active]
}

// ForKind returns the store for the given kind, or nil if none is configured
// in this process.
func (r *Registry) ForKind(k Kind) Store {
	return r.stores[k]
}
