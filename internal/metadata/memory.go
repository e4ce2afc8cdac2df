package metadata

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used by tests. Failure injection is
// available through the error fields.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*UserRecord
	notes   map[string]*NoteRecord
	ratings map[string]map[string]int // note ID -> user ID -> score

	CreateNoteErr error
	DeleteNoteErr error
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*UserRecord),
		notes:   make(map[string]*NoteRecord),
		ratings: make(map[string]map[string]int),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateUser(ctx context.Context, user *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			names[id] = u.Name
		}
	}
	return names, nil
}

func (s *MemoryStore) CreateNote(ctx context.Context, note *NoteRecord) error {
	if s.CreateNoteErr != nil {
		return s.CreateNoteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *note
	s.notes[note.ID] = &cp
	return nil
}

func (s *MemoryStore) GetNote(ctx context.Context, id string) (*NoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStore) DeleteNote(ctx context.Context, id string) error {
	if s.DeleteNoteErr != nil {
		return s.DeleteNoteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.notes, id)
	delete(s.ratings, id)
	return nil
}

func (s *MemoryStore) ListNotes(ctx context.Context, filter NoteFilter) ([]NoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var notes []NoteRecord
	for _, n := range s.notes {
		if filter.Subject != "" && n.Subject != filter.Subject {
			continue
		}
		if filter.Semester > 0 && n.Semester != filter.Semester {
			continue
		}
		notes = append(notes, *n)
	}
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	return notes, nil
}

func (s *MemoryStore) UpsertRating(ctx context.Context, noteID, userID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ratings[noteID] == nil {
		s.ratings[noteID] = make(map[string]int)
	}
	s.ratings[noteID][userID] = score
	return nil
}

func (s *MemoryStore) RatingSummaries(ctx context.Context, noteIDs []string) (map[string]RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make(map[string]RatingSummary, len(noteIDs))
	for _, id := range noteIDs {
		scores := s.ratings[id]
		if len(scores) == 0 {
			continue
		}
		var total int
		for _, score := range scores {
			total += score
		}
		summaries[id] = RatingSummary{
			Count:   len(scores),
			Average: float64(total) / float64(len(scores)),
		}
	}
	return summaries, nil
}

var _ Store = (*MemoryStore)(nil)
