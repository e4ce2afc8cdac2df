package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalPutGetRoundtrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	content := []byte("lecture notes on distributed consensus")
	ref, written, err := store.Put(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "consensus.pdf")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if written != int64(len(content)) {
		t.Errorf("written = %d, want %d", written, len(content))
	}
	if !strings.HasSuffix(ref, "-consensus.pdf") {
		t.Errorf("ref %q does not end with sanitized name", ref)
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
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}
}

func TestLocalDistinctRefsForSameName(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	ref1, _, err := store.Put(context.Background(), strings.NewReader("first"), 5, "text/plain", "notes.pdf")
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	ref2, _, err := store.Put(context.Background(), strings.NewReader("second"), 6, "text/plain", "notes.pdf")
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if ref1 == ref2 {
		t.Errorf("two uploads of the same filename produced the same ref %q", ref1)
	}

	rc, _, err := store.Get(context.Background(), ref1)
	if err != nil {
		t.Fatalf("Get ref1 failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "first" {
		t.Errorf("ref1 content = %q, want %q", got, "first")
	}
}

func TestLocalGetNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	_, _, err = store.Get(context.Background(), "no-such-ref")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get of missing ref: got %v, want ErrNotFound", err)
	}
}

func TestLocalDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	ref, _, err := store.Put(context.Background(), strings.NewReader("data"), 4, "text/plain", "f.txt")
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

func TestLocalRefCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	outside := filepath.Join(filepath.Dir(root), "outside.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("writing outside file: %v", err)
	}
	defer os.Remove(outside)

	_, _, err = store.Get(context.Background(), "../outside.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("traversal ref resolved outside root: got %v, want ErrNotFound", err)
	}
}

func TestLocalCleanTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	// Simulate leftovers from a crashed write.
	tmpDir := filepath.Join(root, ".tmp")
	for _, name := range []string{"tmp-aaa", "tmp-bbb"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("partial"), 0o644); err != nil {
			t.Fatalf("writing temp file: %v", err)
		}
	}

	if err := store.CleanTempFiles(); err != nil {
		t.Fatalf("CleanTempFiles failed: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir has %d entries after cleanup, want 0", len(entries))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes.pdf", "notes.pdf"},
		{"my notes (final).pdf", "my_notes__final_.pdf"},
		{"../../etc/passwd", "passwd"},
		{"", "file"},
		{"..", "file"},
		{"данные.pdf", "______.pdf"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
