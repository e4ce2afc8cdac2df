package blob

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/notestash/notestash/internal/uid"
)

// Memory is an in-memory Store used by tests. Failure injection is
// available through the error fields.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte

	PutErr    error
	GetErr    error
	DeleteErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, r io.Reader, size int64, contentType, suggestedName string) (string, int64, error) {
	if m.PutErr != nil {
		return "", 0, m.PutErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}

	ref := uid.New()

	m.mu.Lock()
	m.blobs[ref] = data
	m.mu.Unlock()

	return ref, int64(len(data)), nil
}

func (m *Memory) Get(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	if m.GetErr != nil {
		return nil, 0, m.GetErr
	}

	m.mu.Lock()
	data, ok := m.blobs[ref]
	m.mu.Unlock()
	if !ok {
		return nil, 0, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *Memory) Delete(ctx context.Context, ref string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[ref]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, ref)
	return nil
}

func (m *Memory) Kind() Kind { return KindMemory }

func (m *Memory) HealthCheck(ctx context.Context) error { return nil }

// Len reports how many blobs the store holds.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

var _ Store = (*Memory)(nil)
