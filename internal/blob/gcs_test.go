package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	gcs "cloud.google.com/go/storage"
)

// mockGCSClient implements GCSAPI against an in-memory object map.
type mockGCSClient struct {
	mu      sync.Mutex
	objects map[string][]byte

	writeErr  error
	deleteErr error
}

func newMockGCSClient() *mockGCSClient {
	return &mockGCSClient{objects: make(map[string][]byte)}
}

// mockGCSWriter buffers writes and commits the object on Close, matching the
// real client's finalize-on-close behavior.
type mockGCSWriter struct {
	buf    bytes.Buffer
	commit func([]byte) error
	err    error
}

func (w *mockGCSWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.buf.Write(p)
}

func (w *mockGCSWriter) Close() error {
	if w.err != nil {
		return w.err
	}
	return w.commit(w.buf.Bytes())
}

func (m *mockGCSClient) NewWriter(ctx context.Context, bucket, object string) GCSWriter {
	return &mockGCSWriter{
		err: m.writeErr,
		commit: func(data []byte) error {
			m.mu.Lock()
			m.objects[object] = data
			m.mu.Unlock()
			return nil
		},
	}
}

func (m *mockGCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.objects[object]
	m.mu.Unlock()
	if !ok {
		return nil, gcs.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockGCSClient) Delete(ctx context.Context, bucket, object string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[object]; !ok {
		return gcs.ErrObjectNotExist
	}
	delete(m.objects, object)
	return nil
}

func (m *mockGCSClient) Size(ctx context.Context, bucket, object string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[object]
	if !ok {
		return 0, gcs.ErrObjectNotExist
	}
	return int64(len(data)), nil
}

func TestGCSPutGetRoundtrip(t *testing.T) {
	client := newMockGCSClient()
	store := NewGCSWithClient("notes-bucket", "test-project", "uploads/", client)

	content := []byte("chapter three summary")
	ref, written, err := store.Put(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "ch3.pdf")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("written = %d, want %d", written, len(content))
	}
	if !strings.HasSuffix(ref, "-ch3.pdf") {
		t.Errorf("ref %q does not end with sanitized name", ref)
	}
	if _, ok := client.objects["uploads/"+ref]; !ok {
		t.Errorf("object not stored under prefixed name")
	}

	rc, size, err := store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}
}

func TestGCSGetNotFound(t *testing.T) {
	store := NewGCSWithClient("notes-bucket", "test-project", "", newMockGCSClient())

	_, _, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get of missing ref: got %v, want ErrNotFound", err)
	}
}

func TestGCSDelete(t *testing.T) {
	client := newMockGCSClient()
	store := NewGCSWithClient("notes-bucket", "test-project", "", client)

	ref, _, err := store.Put(context.Background(), bytes.NewReader([]byte("x")), 1, "text/plain", "x.txt")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(context.Background(), ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete of missing ref: got %v, want ErrNotFound", err)
	}
}

func TestGCSDeleteBackendFailure(t *testing.T) {
	client := newMockGCSClient()
	store := NewGCSWithClient("notes-bucket", "test-project", "", client)

	ref, _, err := store.Put(context.Background(), bytes.NewReader([]byte("x")), 1, "text/plain", "x.txt")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	client.deleteErr = errors.New("service unavailable")
	err = store.Delete(context.Background(), ref)
	if err == nil {
		t.Fatal("Delete succeeded despite backend failure")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("backend failure reported as ErrNotFound")
	}
}
