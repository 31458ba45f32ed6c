package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tutorlive/backend/internal/models"
)

// Messages is an in-memory message record store.
type Messages struct {
	mu       sync.Mutex
	messages []models.Message
	now      func() time.Time
}

// NewMessages creates an empty message store.
func NewMessages() *Messages {
	return &Messages{now: time.Now}
}

// Create stores m, assigning its id and creation time when unset.
func (s *Messages) Create(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	s.messages = append(s.messages, *m)
	return nil
}

// CountUnseen counts unseen messages to receiverID, optionally only those
// sent by senderID.
func (s *Messages) CountUnseen(_ context.Context, receiverID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && !m.Seen && (senderID == "" || m.SenderID == senderID) {
			n++
		}
	}
	return n, nil
}

// MarkSeen flips every unseen message from senderID to receiverID.
func (s *Messages) MarkSeen(_ context.Context, receiverID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}

// ListByParticipant returns every message sent or received by userID,
// newest first.
func (s *Messages) ListByParticipant(_ context.Context, userID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Conversation returns the messages exchanged between a and b, oldest first.
func (s *Messages) Conversation(_ context.Context, a, b string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PurgeBefore deletes messages created before cutoff.
func (s *Messages) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.messages[:0]
	var n int64
	for _, m := range s.messages {
		if m.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	return n, nil
}
