// Package notes implements the note catalog operations: upload, listing,
// content download, deletion, and rating. It coordinates the catalog store
// with the blob storage layer and owns the ordering rules between them.
package notes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/notestash/notestash/internal/blob"
	apierr "github.com/notestash/notestash/internal/errors"
	"github.com/notestash/notestash/internal/metadata"
	"github.com/notestash/notestash/internal/metrics"
	"github.com/notestash/notestash/internal/uid"
)

// allowedExtensions are the upload file types accepted by the service.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Note is the public view of a catalog entry.
type Note struct {
	ID            string    `json:"id"`
	Department    string    `json:"department"`
	Semester      int       `json:"semester"`
	Subject       string    `json:"subject"`
	Tag           string    `json:"tag,omitempty"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"contentType"`
	FileSize      int64     `json:"fileSize"`
	BackendKind   string    `json:"backendKind"`
	UploadedBy    string    `json:"uploadedBy,omitempty"`
	UploaderName  string    `json:"uploaderName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	RatingCount   int       `json:"ratingCount"`
	RatingAverage float64   `json:"ratingAverage"`
}

// UploadInput carries everything needed to store a new note.
type UploadInput struct {
	Department string
	Semester   int
	Subject    string
	Tag        string
	Filename   string
	// ContentType as declared by the client; stored in the catalog and
	// echoed back on download.
	ContentType string
	Content     io.Reader
	// Size is the content length when known, -1 otherwise.
	Size int64
	// UploadedBy is the authenticated uploader's user ID.
	UploadedBy string
}

// Service implements note operations against a catalog store and a registry
// of blob backends.
type Service struct {
	catalog metadata.Store
	blobs   *blob.Registry
}

// NewService creates a notes service. New uploads go to the registry's
// active backend; reads and deletes dispatch on each note's recorded
// backend kind.
func NewService(catalog metadata.Store, blobs *blob.Registry) *Service {
	return &Service{catalog: catalog, blobs: blobs}
}

// Upload validates the input, writes the content to the active blob backend,
// then records the note in the catalog. The blob goes in first: a catalog
// row must never point at content that does not exist. If the catalog write
// fails, the just-written blob is deleted best-effort.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Note, error) {
	if err := validateUpload(in); err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("upload", "failure").Inc()
		return nil, err
	}

	store := s.blobs.Active()
	ref, written, err := store.Put(ctx, in.Content, in.Size, in.ContentType, in.Filename)
	if err != nil {
		slog.Error("Blob write failed", "backend", store.Kind(), "filename", in.Filename, "error", err)
		metrics.NoteOperationsTotal.WithLabelValues("upload", "failure").Inc()
		return nil, apierr.ErrStorage
	}
	metrics.BlobBytesWrittenTotal.Add(float64(written))

	record := &metadata.NoteRecord{
		ID:          uid.New(),
		Department:  strings.TrimSpace(in.Department),
		Semester:    in.Semester,
		Subject:     strings.TrimSpace(in.Subject),
		Tag:         strings.TrimSpace(in.Tag),
		Filename:    filepath.Base(in.Filename),
		ContentType: in.ContentType,
		FileSize:    written,
		StorageRef:  ref,
		BackendKind: store.Kind(),
		UploadedBy:  in.UploadedBy,
		CreatedAt:   time.Now(),
	}
	if err := s.catalog.CreateNote(ctx, record); err != nil {
		// Roll the blob back so no orphaned content is left behind. A
		// failure here only leaks a blob, never a dangling catalog row.
		if delErr := store.Delete(ctx, ref); delErr != nil && !errors.Is(delErr, blob.ErrNotFound) {
			slog.Error("Orphaned blob after failed catalog write", "backend", store.Kind(), "ref", ref, "error", delErr)
		}
		metrics.NoteOperationsTotal.WithLabelValues("upload", "failure").Inc()
		return nil, fmt.Errorf("recording note: %w", err)
	}

	slog.Info("Note uploaded", "note_id", record.ID, "subject", record.Subject,
		"backend", record.BackendKind, "size", written)
	metrics.NoteOperationsTotal.WithLabelValues("upload", "success").Inc()

	note := toNote(record)
	return &note, nil
}

func validateUpload(in UploadInput) error {
	if strings.TrimSpace(in.Department) == "" ||
		strings.TrimSpace(in.Subject) == "" ||
		strings.TrimSpace(in.Filename) == "" {
		return apierr.ErrInvalidInput
	}
	if in.Semester < 1 {
		return apierr.ErrInvalidInput.WithMessage("Semester must be a positive number")
	}
	if in.Content == nil {
		return apierr.ErrMissingFile
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if !allowedExtensions[ext] {
		return apierr.ErrInvalidFileType
	}
	return nil
}

// List returns notes matching the filter, newest first, with uploader names
// and rating aggregates filled in.
func (s *Service) List(ctx context.Context, filter metadata.NoteFilter) ([]Note, error) {
	records, err := s.catalog.ListNotes(ctx, filter)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("list", "failure").Inc()
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	notes := make([]Note, 0, len(records))
	var userIDs, noteIDs []string
	seen := make(map[string]bool)
	for _, r := range records {
		notes = append(notes, toNote(&r))
		noteIDs = append(noteIDs, r.ID)
		if r.UploadedBy != "" && !seen[r.UploadedBy] {
			seen[r.UploadedBy] = true
			userIDs = append(userIDs, r.UploadedBy)
		}
	}

	names, err := s.catalog.UserNames(ctx, userIDs)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("list", "failure").Inc()
		return nil, fmt.Errorf("resolving uploader names: %w", err)
	}
	summaries, err := s.catalog.RatingSummaries(ctx, noteIDs)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("list", "failure").Inc()
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}
	for i := range notes {
		notes[i].UploaderName = names[notes[i].UploadedBy]
		if sum, ok := summaries[notes[i].ID]; ok {
			notes[i].RatingCount = sum.Count
			notes[i].RatingAverage = sum.Average
		}
	}

	metrics.NoteOperationsTotal.WithLabelValues("list", "success").Inc()
	return notes, nil
}

// Get returns a single note with uploader name and rating aggregates.
func (s *Service) Get(ctx context.Context, id string) (*Note, error) {
	record, err := s.catalog.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}
	if record == nil {
		return nil, apierr.ErrNotFound
	}

	note := toNote(record)
	if record.UploadedBy != "" {
		names, err := s.catalog.UserNames(ctx, []string{record.UploadedBy})
		if err != nil {
			return nil, fmt.Errorf("resolving uploader name: %w", err)
		}
		note.UploaderName = names[record.UploadedBy]
	}
	summaries, err := s.catalog.RatingSummaries(ctx, []string{record.ID})
	if err != nil {
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}
	if sum, ok := summaries[record.ID]; ok {
		note.RatingCount = sum.Count
		note.RatingAverage = sum.Average
	}
	return &note, nil
}

// FetchContent opens the note's file content for streaming. The blob backend
// is selected by the kind recorded on the note, not by the currently active
// backend, so notes uploaded before a backend switch stay readable.
func (s *Service) FetchContent(ctx context.Context, id string) (*Note, io.ReadCloser, int64, error) {
	record, err := s.catalog.GetNote(ctx, id)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("download", "failure").Inc()
		return nil, nil, 0, fmt.Errorf("getting note: %w", err)
	}
	if record == nil {
		metrics.NoteOperationsTotal.WithLabelValues("download", "failure").Inc()
		return nil, nil, 0, apierr.ErrNotFound
	}

	store := s.blobs.ForKind(record.BackendKind)
	if store == nil {
		slog.Error("No blob backend configured for note", "note_id", id, "backend", record.BackendKind)
		metrics.NoteOperationsTotal.WithLabelValues("download", "failure").Inc()
		return nil, nil, 0, apierr.ErrStorage
	}

	rc, size, err := store.Get(ctx, record.StorageRef)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("download", "failure").Inc()
		if errors.Is(err, blob.ErrNotFound) {
			slog.Error("Catalog row points at missing blob", "note_id", id,
				"backend", record.BackendKind, "ref", record.StorageRef)
			return nil, nil, 0, apierr.ErrNotFound
		}
		slog.Error("Blob read failed", "note_id", id, "backend", record.BackendKind, "error", err)
		return nil, nil, 0, apierr.ErrStorage
	}

	metrics.NoteOperationsTotal.WithLabelValues("download", "success").Inc()
	note := toNote(record)
	return &note, &countingReader{rc: rc}, size, nil
}

// Remove deletes a note and its content. Only the uploader may delete; notes
// with no recorded owner are not deletable by anyone. The blob is deleted
// before the catalog row so a failure can never leave a row pointing at
// nothing: an already-missing blob is tolerated, a backend failure aborts
// with both sides intact.
func (s *Service) Remove(ctx context.Context, id, requesterID string) error {
	record, err := s.catalog.GetNote(ctx, id)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return fmt.Errorf("getting note: %w", err)
	}
	if record == nil {
		metrics.NoteOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return apierr.ErrNotFound
	}
	if record.UploadedBy == "" || record.UploadedBy != requesterID {
		metrics.NoteOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return apierr.ErrForbidden
	}

	store := s.blobs.ForKind(record.BackendKind)
	if store == nil {
		slog.Error("No blob backend configured for note", "note_id", id, "backend", record.BackendKind)
		metrics.NoteOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return apierr.ErrStorage
	}
	if err := store.Delete(ctx, record.StorageRef); err != nil && !errors.Is(err, blob.ErrNotFound) {
		slog.Error("Blob delete failed", "note_id", id, "backend", record.BackendKind, "error", err)
		metrics.NoteOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return apierr.ErrStorage
	}

	if err := s.catalog.DeleteNote(ctx, id); err != nil && !errors.Is(err, metadata.ErrNotFound) {
		metrics.NoteOperationsTotal.WithLabelValues("delete", "failure").Inc()
		return fmt.Errorf("deleting note: %w", err)
	}

	slog.Info("Note deleted", "note_id", id, "user_id", requesterID)
	metrics.NoteOperationsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// Rate records or replaces the requester's rating of a note. Scores run 1
// through 5; re-rating replaces the previous score.
func (s *Service) Rate(ctx context.Context, noteID, userID string, score int) (*metadata.RatingSummary, error) {
	if score < 1 || score > 5 {
		metrics.NoteOperationsTotal.WithLabelValues("rate", "failure").Inc()
		return nil, apierr.ErrInvalidInput.WithMessage("Rating must be between 1 and 5")
	}

	record, err := s.catalog.GetNote(ctx, noteID)
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("rate", "failure").Inc()
		return nil, fmt.Errorf("getting note: %w", err)
	}
	if record == nil {
		metrics.NoteOperationsTotal.WithLabelValues("rate", "failure").Inc()
		return nil, apierr.ErrNotFound
	}

	if err := s.catalog.UpsertRating(ctx, noteID, userID, score); err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("rate", "failure").Inc()
		return nil, fmt.Errorf("recording rating: %w", err)
	}

	summaries, err := s.catalog.RatingSummaries(ctx, []string{noteID})
	if err != nil {
		metrics.NoteOperationsTotal.WithLabelValues("rate", "failure").Inc()
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}
	sum := summaries[noteID]

	metrics.NoteOperationsTotal.WithLabelValues("rate", "success").Inc()
	return &sum, nil
}

func toNote(r *metadata.NoteRecord) Note {
	return Note{
		ID:          r.ID,
		Department:  r.Department,
		Semester:    r.Semester,
		Subject:     r.Subject,
		Tag:         r.Tag,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		FileSize:    r.FileSize,
		BackendKind: string(r.BackendKind),
		UploadedBy:  r.UploadedBy,
		CreatedAt:   r.CreatedAt,
	}
}

// countingReader feeds the bytes-read counter as content streams out.
type countingReader struct {
	rc io.ReadCloser
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if n > 0 {
		metrics.BlobBytesReadTotal.Add(float64(n))
	}
	return n, err
}

func (c *countingReader) Close() error {
	return c.rc.Close()
}
