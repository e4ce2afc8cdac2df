package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/notestash/notestash/internal/uid"
)

// Local implements the Store interface using the local filesystem. Blobs are
// stored as flat files within a configurable root directory; refs are the
// file names, prefixed with a random disambiguator so that two concurrent
// uploads of the same original filename never collide.
type Local struct {
	// RootDir is the base directory under which all blob files are stored.
	RootDir string
}

// NewLocal creates a Local store rooted at the given directory. It creates
// the root directory and the temp directory if they do not exist.
func NewLocal(rootDir string) (*Local, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root directory %q: %w", rootDir, err)
	}
	// Create the .tmp directory for atomic writes.
	tmpDir := filepath.Join(rootDir, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory %q: %w", tmpDir, err)
	}
	return &Local{RootDir: rootDir}, nil
}

// CleanTempFiles removes all files in the .tmp directory. This is called on
// startup as part of crash-only recovery. Any temp files left behind indicate
// incomplete writes from a previous crash.
func (s *Local) CleanTempFiles() error {
	tmpDir := filepath.Join(s.RootDir, ".tmp")
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading temp directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(tmpDir, entry.Name()))
		}
	}
	return nil
}

// Kind reports the backend kind.
func (s *Local) Kind() Kind { return KindLocal }

// blobPath returns the full filesystem path for a ref. The ref is reduced to
// its base name so a hostile ref can never escape the root directory.
func (s *Local) blobPath(ref string) string {
	return filepath.Join(s.RootDir, filepath.Base(ref))
}

// tempPath returns a unique temporary file path in the .tmp directory.
func (s *Local) tempPath() string {
	return filepath.Join(s.RootDir, ".tmp", "tmp-"+uid.New())
}

// sanitizeName reduces an original filename to a safe ref suffix: base name
// only, path separators and control characters stripped.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		out = "file"
	}
	return out
}

// Put writes blob data to a file using the crash-only atomic write pattern:
// write to temp file, fsync, rename. The returned ref is
// "<random>-<sanitized original name>".
func (s *Local) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	ref := uid.Short() + "-" + sanitizeName(suggestedName)
	finalPath := s.blobPath(ref)

	tmpPath := s.tempPath()
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("writing blob data: %w", err)
	}

	// Fsync before rename to guarantee durability.
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("closing temp file: %w", err)
	}

	// Atomic rename: temp -> final path.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("renaming temp file to final path: %w", err)
	}

	return ref, written, nil
}

// Get opens the blob file for reading. The caller is responsible for closing
// the returned ReadCloser.
func (s *Local) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	path := s.blobPath(ref)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("opening blob file %q: %w", ref, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat blob file %q: %w", ref, err)
	}

	return file, info.Size(), nil
}

// Delete removes the blob file. Returns ErrNotFound if the file is already
// absent so the caller can tell absence apart from an I/O failure.
func (s *Local) Delete(ctx context.Context, ref string) error {
	err := os.Remove(s.blobPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("removing blob file %q: %w", ref, err)
	}
	return nil
}

// HealthCheck verifies that the storage root directory is accessible.
func (s *Local) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(s.RootDir)
	return err
}
