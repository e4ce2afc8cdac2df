package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func newTestChunked(t *testing.T, chunkSize int) *Chunked {
	t.Helper()
	store, err := NewChunked(filepath.Join(t.TempDir(), "chunks.db"), chunkSize)
	if err != nil {
		t.Fatalf("NewChunked failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChunkedRoundtripMultipleChunks(t *testing.T) {
	store := newTestChunked(t, 16)

	// 70 bytes across a 16-byte chunk size: four full chunks plus a tail.
	content := bytes.Repeat([]byte("abcdefg"), 10)
	ref, written, err := store.Put(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "long.pdf")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("written = %d, want %d", written, len(content))
	}

	rc, size, err := store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch after chunked roundtrip")
	}
}

func TestChunkedExactChunkBoundary(t *testing.T) {
	store := newTestChunked(t, 8)

	content := []byte("0123456789abcdef") // exactly two chunks
	ref, _, err := store.Put(context.Background(), bytes.NewReader(content), int64(len(content)), "text/plain", "even.txt")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
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
		t.Errorf("content mismatch at exact chunk boundary")
	}
}

func TestChunkedEmptyBlob(t *testing.T) {
	store := newTestChunked(t, 8)

	ref, written, err := store.Put(context.Background(), bytes.NewReader(nil), 0, "text/plain", "empty.txt")
	if err != nil {
		t.Fatalf("Put of empty content failed: %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}

	rc, size, err := store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	if size != 0 {
		t.Errorf("size = %d, want 0", size)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading empty blob: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty blob returned %d bytes", len(got))
	}
}

func TestChunkedGetNotFound(t *testing.T) {
	store := newTestChunked(t, 8)

	_, _, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get of missing ref: got %v, want ErrNotFound", err)
	}
}

func TestChunkedDelete(t *testing.T) {
	store := newTestChunked(t, 8)

	ref, _, err := store.Put(context.Background(), bytes.NewReader([]byte("some chunked data here")), 22, "text/plain", "d.txt")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := store.Get(context.Background(), ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
	if err := store.Delete(context.Background(), ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}
