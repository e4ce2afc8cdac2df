// Google Cloud Storage blob backend for NoteStash.
//
// Blob content is uploaded to an upstream GCS bucket via the official Go
// Cloud Storage client library. The note catalog stays local -- this backend
// handles raw bytes only. Refs map to upstream object names as {prefix}{ref}.
//
// Credentials are resolved via Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud auth, metadata server).
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	gcs "cloud.google.com/go/storage"

	"github.com/notestash/notestash/internal/uid"
)

// GCSAPI defines the subset of the GCS client interface that the backend
// uses. This allows mocking in tests.
type GCSAPI interface {
	// NewWriter returns a writer for the given GCS object.
	NewWriter(ctx context.Context, bucket, object string) GCSWriter
	// NewReader returns a reader for the given GCS object.
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	// Delete deletes the given GCS object.
	Delete(ctx context.Context, bucket, object string) error
	// Size returns the size of the given GCS object.
	Size(ctx context.Context, bucket, object string) (int64, error)
}

// GCSWriter is a writer interface for writing to GCS objects.
type GCSWriter interface {
	io.WriteCloser
}

// realGCSClient wraps the official GCS client to satisfy GCSAPI.
type realGCSClient struct {
	client *gcs.Client
}

func (c *realGCSClient) NewWriter(ctx context.Context, bucket, object string) GCSWriter {
	return c.client.Bucket(bucket).Object(object).NewWriter(ctx)
}

func (c *realGCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (c *realGCSClient) Delete(ctx context.Context, bucket, object string) error {
	return c.client.Bucket(bucket).Object(object).Delete(ctx)
}

func (c *realGCSClient) Size(ctx context.Context, bucket, object string) (int64, error) {
	attrs, err := c.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// GCS implements the Store interface against an upstream Google Cloud
// Storage bucket.
type GCS struct {
	// Bucket is the upstream GCS bucket name.
	Bucket string
	// Project is the GCP project ID.
	Project string
	// Prefix is the object-name prefix for all blobs in the upstream bucket.
	Prefix string
	// client is the GCS client (satisfying the GCSAPI interface).
	client GCSAPI
}

// NewGCS creates a GCS blob store configured to write to the given bucket.
// It initializes the GCS client using Application Default Credentials and
// verifies the upstream bucket is reachable so a misconfigured backend fails
// startup rather than the first upload.
func NewGCS(ctx context.Context, bucket, project, prefix string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &GCS{
		Bucket:  bucket,
		Project: project,
		Prefix:  prefix,
		client:  &realGCSClient{client: client},
	}

	// Probe with an object that cannot exist; only a transport/auth failure
	// is a startup error.
	if _, err := s.client.Size(ctx, bucket, "\x00nonexistent\x00"); err != nil && !isGCSNotFound(err) {
		return nil, fmt.Errorf("cannot access upstream GCS bucket %q: %w", bucket, err)
	}

	slog.Info("GCS blob backend initialized", "bucket", bucket, "project", project, "prefix", prefix)
	return s, nil
}

// NewGCSWithClient creates a GCS blob store with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewGCSWithClient(bucket, project, prefix string, client GCSAPI) *GCS {
	return &GCS{
		Bucket:  bucket,
		Project: project,
		Prefix:  prefix,
		client:  client,
	}
}

// Kind reports the backend kind.
func (s *GCS) Kind() Kind { return KindGCS }

// objectName maps a ref to an upstream GCS object name.
func (s *GCS) objectName(ref string) string {
	return s.Prefix + ref
}

// Put streams blob content to the upstream bucket through a GCS writer.
// GCS finalizes the object only on a successful Close, so a failed upload
// leaves nothing visible.
func (s *GCS) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	ref := uid.New() + "-" + sanitizeName(suggestedName)

	w := s.client.NewWriter(ctx, s.Bucket, s.objectName(ref))
	written, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", 0, fmt.Errorf("uploading to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("finalizing GCS upload: %w", err)
	}

	return ref, written, nil
}

// Get retrieves blob content from the upstream bucket as a stream.
func (s *GCS) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	name := s.objectName(ref)

	size, err := s.client.Size(ctx, s.Bucket, name)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("getting blob attrs from GCS: %w", err)
	}

	reader, err := s.client.NewReader(ctx, s.Bucket, name)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("getting blob from GCS: %w", err)
	}

	return reader, size, nil
}

// Delete removes the blob from the upstream bucket. GCS errors on delete of
// non-existent objects, which maps directly to ErrNotFound.
func (s *GCS) Delete(ctx context.Context, ref string) error {
	if err := s.client.Delete(ctx, s.Bucket, s.objectName(ref)); err != nil {
		if isGCSNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting blob from GCS: %w", err)
	}
	return nil
}

// HealthCheck verifies that the upstream GCS bucket is reachable.
func (s *GCS) HealthCheck(ctx context.Context) error {
	_, err := s.client.Size(ctx, s.Bucket, "\x00nonexistent\x00")
	if err != nil && !isGCSNotFound(err) {
		return err
	}
	return nil
}

// isGCSNotFound checks if a GCS error is a 404/not-found error.
func isGCSNotFound(err error) bool {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return true
	}
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return true
	}
	return false
}

// Ensure GCS implements Store at compile time.
var _ Store = (*GCS)(nil)
