// Package memstore keeps tutor and message records in process memory. It backs
// the "memory" store driver for local development and serves as the store in
// tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/tutorlive/backend/internal/models"
)

// Tutors is an in-memory tutor record store.
type Tutors struct {
	mu     sync.Mutex
	tutors map[string]models.Tutor
}

// NewTutors creates a tutor store seeded with the given records.
func NewTutors(seed ...models.Tutor) *Tutors {
	s := &Tutors{tutors: make(map[string]models.Tutor)}
	for _, t := range seed {
		s.tutors[t.ID] = t
	}
	return s
}

// Put inserts or replaces a tutor record.
func (s *Tutors) Put(t models.Tutor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tutors[t.ID] = t
}

// GetByID returns a tutor or nil when absent.
func (s *Tutors) GetByID(_ context.Context, id string) (*models.Tutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tutors[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// SetLive sets the isLive flag. Unknown ids are a no-op, like an update by id
// that matches nothing.
func (s *Tutors) SetLive(_ context.Context, id string, live bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tutors[id]
	if !ok {
		return nil
	}
	t.IsLive = live
	s.tutors[id] = t
	return nil
}

// ListLive returns approved tutors flagged live, ordered by id.
func (s *Tutors) ListLive(_ context.Context) ([]models.LiveTutor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LiveTutor{}
	for _, t := range s.tutors {
		if t.IsLive && t.Approved {
			out = append(out, t.ToLive())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LiveIDs returns the ids of every tutor flagged live.
func (s *Tutors) LiveIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, t := range s.tutors {
		if t.IsLive {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
