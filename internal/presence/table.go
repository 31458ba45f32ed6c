package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Viewer is the per-viewer metadata of a live session.
type Viewer struct {
	StudentID    string    `json:"studentId"`
	ConnectionID string    `json:"-"`
	StudentName  string    `json:"studentName"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Departure describes a viewer removed because its connection closed.
type Departure struct {
	TutorID     string
	StudentID   string
	StudentName string
	Remaining   int
}

// LiveSession is one tutor's broadcast. Viewer ids are the keys of viewers,
// so the viewer set and the metadata map cannot diverge.
type LiveSession struct {
	TutorID   string
	StartedAt time.Time
	viewers   map[string]Viewer
}

type viewerKey struct {
	tutorID   string
	studentID string
}

// Table holds every live session of this process. All mutations go through
// methods that update the session map and the connection index together.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
	// connID -> viewers registered from that connection
	byConn map[string]map[viewerKey]struct{}
}

// NewTable creates an empty presence table.
func NewTable() *Table {
	return &Table{
		sessions: make(map[string]*LiveSession),
		byConn:   make(map[string]map[viewerKey]struct{}),
	}
}

// Start creates (or silently replaces) the session for tutorID.
func (t *Table) Start(tutorID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.sessions[tutorID]; ok {
		t.dropIndexLocked(old)
	}
	t.sessions[tutorID] = newSession(tutorID, now)
}

// Ensure creates the session for tutorID unless one exists, keeping any
// viewers already joined. Reports whether a session was created.
func (t *Table) Ensure(tutorID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[tutorID]; ok {
		return false
	}
	t.sessions[tutorID] = newSession(tutorID, now)
	return true
}

// Stop deletes the session for tutorID and reports whether one existed.
func (t *Table) Stop(tutorID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[tutorID]
	if !ok {
		return false
	}
	t.dropIndexLocked(s)
	delete(t.sessions, tutorID)
	return true
}

// Join upserts a viewer, creating the session when the viewer arrives first.
// An empty name defaults to "Viewer N" where N is the viewer count after the
// join. Returns the stored viewer and the session's viewer count.
func (t *Table) Join(tutorID, studentID, connID, name string, now time.Time) (Viewer, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[tutorID]
	if !ok {
		s = newSession(tutorID, now)
		t.sessions[tutorID] = s
	}
	key := viewerKey{tutorID: tutorID, studentID: studentID}
	count := len(s.viewers)
	if prev, ok := s.viewers[studentID]; ok {
		t.unindexLocked(prev.ConnectionID, key)
	} else {
		count++
	}
	if name == "" {
		name = fmt.Sprintf("Viewer %d", count)
	}
	v := Viewer{StudentID: studentID, ConnectionID: connID, StudentName: name, JoinedAt: now}
	s.viewers[studentID] = v
	t.indexLocked(connID, key)
	return v, len(s.viewers)
}

// RemoveConn removes every viewer registered from connID.
func (t *Table) RemoveConn(connID string) []Departure {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := t.byConn[connID]
	if len(keys) == 0 {
		return nil
	}
	out := make([]Departure, 0, len(keys))
	for key := range keys {
		s, ok := t.sessions[key.tutorID]
		if !ok {
			continue
		}
		v, ok := s.viewers[key.studentID]
		if !ok || v.ConnectionID != connID {
			continue
		}
		delete(s.viewers, key.studentID)
		out = append(out, Departure{
			TutorID:     key.tutorID,
			StudentID:   key.studentID,
			StudentName: v.StudentName,
			Remaining:   len(s.viewers),
		})
	}
	delete(t.byConn, connID)
	sort.Slice(out, func(i, j int) bool { return out[i].TutorID < out[j].TutorID })
	return out
}

// ViewerConn resolves a viewer to its connection id.
func (t *Table) ViewerConn(tutorID, studentID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[tutorID]
	if !ok {
		return "", false
	}
	v, ok := s.viewers[studentID]
	if !ok {
		return "", false
	}
	return v.ConnectionID, true
}

// IsLive reports whether tutorID has an in-memory session.
func (t *Table) IsLive(tutorID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[tutorID]
	return ok
}

// ViewerCount returns the number of viewers of tutorID's session.
func (t *Table) ViewerCount(tutorID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.sessions[tutorID]; ok {
		return len(s.viewers)
	}
	return 0
}

// Viewers returns a snapshot of tutorID's viewers ordered by join time.
func (t *Table) Viewers(tutorID string) []Viewer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[tutorID]
	if !ok {
		return nil
	}
	out := make([]Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Sessions returns the ids of every live tutor.
func (t *Table) Sessions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops all state.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = make(map[string]*LiveSession)
	t.byConn = make(map[string]map[viewerKey]struct{})
}

func newSession(tutorID string, now time.Time) *LiveSession {
	return &LiveSession{TutorID: tutorID, StartedAt: now, viewers: make(map[string]Viewer)}
}

func (t *Table) indexLocked(connID string, key viewerKey) {
	m, ok := t.byConn[connID]
	if !ok {
		m = make(map[viewerKey]struct{})
		t.byConn[connID] = m
	}
	m[key] = struct{}{}
}

func (t *Table) unindexLocked(connID string, key viewerKey) {
	m, ok := t.byConn[connID]
	if !ok {
		return
	}
	delete(m, key)
	if len(m) == 0 {
		delete(t.byConn, connID)
	}
}

func (t *Table) dropIndexLocked(s *LiveSession) {
	for id, v := range s.viewers {
		t.unindexLocked(v.ConnectionID, viewerKey{tutorID: s.TutorID, studentID: id})
	}
}
