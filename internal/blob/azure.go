// Azure Blob Storage backend for NoteStash.
//
// Blob content is uploaded to an upstream Azure Blob container via the
// official Azure SDK for Go. The note catalog stays local -- this backend
// handles raw bytes only. Refs map to upstream blob names as {prefix}{ref}.
//
// Credentials are resolved via DefaultAzureCredential (env vars, managed
// identity, Azure CLI, etc.).
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/notestash/notestash/internal/uid"
)

// AzureBlobAPI defines the subset of the Azure Blob Storage client interface
// that the backend uses. This allows mocking in tests.
type AzureBlobAPI interface {
	// UploadBlob uploads data to a blob, overwriting if it already exists.
	UploadBlob(ctx context.Context, containerName, blobName string, data []byte) error
	// DownloadBlob downloads a blob's contents.
	DownloadBlob(ctx context.Context, containerName, blobName string) ([]byte, error)
	// DeleteBlob deletes a blob. Returns an error if the blob does not exist.
	DeleteBlob(ctx context.Context, containerName, blobName string) error
	// BlobExists checks if a blob exists.
	BlobExists(ctx context.Context, containerName, blobName string) (bool, error)
	// BlobSize retrieves the size of a blob.
	BlobSize(ctx context.Context, containerName, blobName string) (int64, error)
}

// Azure implements the Store interface against an upstream Azure Blob
// Storage container.
type Azure struct {
	// Container is the upstream Azure Blob container name.
	Container string
	// AccountURL is the Azure storage account URL (e.g. https://account.blob.core.windows.net).
	AccountURL string
	// Prefix is the blob-name prefix for all blobs in the upstream container.
	Prefix string
	// client is the Azure Blob client (satisfying the AzureBlobAPI interface).
	client AzureBlobAPI
}

// NewAzure creates an Azure blob store configured to write to the given
// container. It initializes the Azure SDK client using DefaultAzureCredential
// and verifies the upstream container is reachable so a misconfigured backend
// fails startup rather than the first upload.
func NewAzure(ctx context.Context, container, accountURL, prefix string) (*Azure, error) {
	client, err := newRealAzureClient(accountURL)
	if err != nil {
		return nil, fmt.Errorf("creating Azure client: %w", err)
	}

	s := &Azure{
		Container:  container,
		AccountURL: accountURL,
		Prefix:     prefix,
		client:     client,
	}

	// Verify the upstream container is accessible by probing a blob name
	// that cannot exist.
	if _, err := s.client.BlobExists(ctx, container, "\x00nonexistent\x00"); err != nil {
		return nil, fmt.Errorf("cannot access upstream Azure container %q: %w", container, err)
	}

	slog.Info("Azure blob backend initialized", "container", container, "account", accountURL, "prefix", prefix)
	return s, nil
}

// NewAzureWithClient creates an Azure blob store with a pre-configured
// client. This is primarily used for testing with mock clients.
func NewAzureWithClient(container, accountURL, prefix string, client AzureBlobAPI) *Azure {
	return &Azure{
		Container:  container,
		AccountURL: accountURL,
		Prefix:     prefix,
		client:     client,
	}
}

// Kind reports the backend kind.
func (s *Azure) Kind() Kind { return KindAzure }

// blobName maps a ref to an upstream Azure blob name.
func (s *Azure) blobName(ref string) string {
	return s.Prefix + ref
}

// Put uploads blob content to the upstream container in a single call.
// The SDK materializes the content; Azure uploads are atomic per blob.
func (s *Azure) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	ref := uid.New() + "-" + sanitizeName(suggestedName)

	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("reading blob data: %w", err)
	}

	if err := s.client.UploadBlob(ctx, s.Container, s.blobName(ref), data); err != nil {
		return "", 0, fmt.Errorf("uploading to Azure Blob: %w", err)
	}

	return ref, int64(len(data)), nil
}

// Get retrieves blob content from the upstream container.
func (s *Azure) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	name := s.blobName(ref)

	size, err := s.client.BlobSize(ctx, s.Container, name)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("getting blob properties from Azure: %w", err)
	}

	data, err := s.client.DownloadBlob(ctx, s.Container, name)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("getting blob from Azure Blob: %w", err)
	}

	return io.NopCloser(bytes.NewReader(data)), size, nil
}

// Delete removes the blob from the upstream container. Azure errors on
// delete of non-existent blobs, which maps directly to ErrNotFound.
func (s *Azure) Delete(ctx context.Context, ref string) error {
	if err := s.client.DeleteBlob(ctx, s.Container, s.blobName(ref)); err != nil {
		if isAzureNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting blob from Azure Blob: %w", err)
	}
	return nil
}

// HealthCheck verifies that the upstream Azure container is reachable.
func (s *Azure) HealthCheck(ctx context.Context) error {
	_, err := s.client.BlobExists(ctx, s.Container, "\x00nonexistent\x00")
	return err
}

// isAzureNotFound checks if an Azure error is a 404/not-found error.
func isAzureNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "404") ||
		strings.Contains(msg, "blobnotfound") || strings.Contains(msg, "containernotfound") ||
		strings.Contains(msg, "the specified blob does not exist") ||
		strings.Contains(msg, "the specified container does not exist") {
		return true
	}
	return false
}

// Ensure Azure implements Store at compile time.
var _ Store = (*Azure)(nil)
