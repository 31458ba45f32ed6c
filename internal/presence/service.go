// Package presence tracks which tutors are broadcasting and who is watching.
package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/models"
)

// TutorStore is the durable side of presence: the isLive flag on tutor records.
type TutorStore interface {
	SetLive(ctx context.Context, tutorID string, live bool) error
	ListLive(ctx context.Context) ([]models.LiveTutor, error)
	LiveIDs(ctx context.Context) ([]string, error)
}

// ImageResolver turns a stored tutor image reference into a URL clients can load.
type ImageResolver interface {
	ResolveImageURL(ctx context.Context, image string) string
}

// Service applies presence operations to the table and the tutor store and
// returns the effects for the hub to deliver.
type Service struct {
	table  *Table
	tutors TutorStore
	images ImageResolver
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a presence service over table and tutors.
func NewService(table *Table, tutors TutorStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{table: table, tutors: tutors, logger: logger, now: time.Now}
}

// SetImageResolver sets the resolver applied to tutor images in live lists.
func (s *Service) SetImageResolver(r ImageResolver) {
	s.images = r
}

// Table exposes the in-memory session table.
func (s *Service) Table() *Table {
	return s.table
}

// Restore rebuilds empty sessions for every tutor whose durable record is
// flagged live, so the table mirrors the store after a restart.
func (s *Service) Restore(ctx context.Context) error {
	ids, err := s.tutors.LiveIDs(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	for _, id := range ids {
		s.table.Start(id, now)
	}
	s.logger.Info("presence restored", zap.Int("live_tutors", len(ids)))
	return nil
}

// StartSession marks tutorID live. The flag write completes before the live
// list is read. connID may be empty when the start comes from HTTP.
func (s *Service) StartSession(ctx context.Context, connID, tutorID string) []events.Effect {
	err := s.tutors.SetLive(ctx, tutorID, true)
	if err != nil {
		s.logger.Error("set tutor live", zap.String("tutor_id", tutorID), zap.Error(err))
	}
	s.table.Start(tutorID, s.now())

	var effects []events.Effect
	if connID != "" {
		effects = append(effects, events.Join(connID, events.TutorChannel(tutorID)))
	}
	if err != nil {
		return effects
	}
	s.logger.Info("tutor started live session", zap.String("tutor_id", tutorID))
	return append(effects, s.publishLive(ctx)...)
}

// StopSession clears tutorID's live state and tells the remaining audience
// that the session ended.
func (s *Service) StopSession(ctx context.Context, tutorID string) []events.Effect {
	err := s.tutors.SetLive(ctx, tutorID, false)
	if err != nil {
		s.logger.Error("clear tutor live", zap.String("tutor_id", tutorID), zap.Error(err))
	}
	s.table.Stop(tutorID)

	var effects []events.Effect
	if err == nil {
		effects = append(effects, s.publishLive(ctx)...)
	}
	s.logger.Info("tutor stopped live session", zap.String("tutor_id", tutorID))
	return append(effects, events.ToRoom(events.TutorChannel(tutorID), events.OutTutorStoppedLive, nil))
}

// GoLive marks tutorID live from outside a socket. Unlike StartSession it
// keeps an existing session and its viewers, and a failed flag write is
// returned without touching the table.
func (s *Service) GoLive(ctx context.Context, tutorID string) ([]events.Effect, error) {
	if err := s.tutors.SetLive(ctx, tutorID, true); err != nil {
		return nil, fmt.Errorf("set tutor live: %w", err)
	}
	if s.table.Ensure(tutorID, s.now()) {
		s.logger.Info("tutor started live session", zap.String("tutor_id", tutorID))
	}
	return s.publishLive(ctx), nil
}

// GoOffline clears tutorID's live flag from outside a socket and ends its
// session. A failed flag write is returned and the session is kept.
func (s *Service) GoOffline(ctx context.Context, tutorID string) ([]events.Effect, error) {
	if err := s.tutors.SetLive(ctx, tutorID, false); err != nil {
		return nil, fmt.Errorf("clear tutor live: %w", err)
	}
	s.table.Stop(tutorID)
	s.logger.Info("tutor stopped live session", zap.String("tutor_id", tutorID))
	return append(s.publishLive(ctx),
		events.ToRoom(events.TutorChannel(tutorID), events.OutTutorStoppedLive, nil)), nil
}

// JoinViewer adds a viewer to tutorID's session. The viewer's connection
// defaults to the sending connection.
func (s *Service) JoinViewer(connID string, in *events.StudentJoin) []events.Effect {
	viewerConn := in.ConnectionID
	if viewerConn == "" {
		viewerConn = connID
	}
	v, count := s.table.Join(in.TutorID, in.StudentID, viewerConn, in.StudentName, s.now())
	room := events.TutorChannel(in.TutorID)
	s.logger.Debug("viewer joined",
		zap.String("tutor_id", in.TutorID),
		zap.String("student_id", in.StudentID),
		zap.Int("viewers", count),
	)
	return []events.Effect{
		events.Join(connID, room),
		events.ToRoom(room, events.OutStudentJoin, map[string]string{
			"studentId":    v.StudentID,
			"connectionId": v.ConnectionID,
			"studentName":  v.StudentName,
		}),
		events.ToRoom(room, events.OutViewerCountUpdate, count),
	}
}

// Verify answers a viewer's connectivity check.
func (s *Service) Verify(connID string, in *events.StudentVerify) []events.Effect {
	return []events.Effect{
		events.ToConn(connID, events.OutVerificationResponse, map[string]any{
			"status":     "verified",
			"studentId":  in.StudentID,
			"tutorId":    in.TutorID,
			"serverTime": s.now().UnixMilli(),
		}),
	}
}

// Disconnect removes every viewer registered from connID and notifies the
// affected tutors.
func (s *Service) Disconnect(connID string) []events.Effect {
	departures := s.table.RemoveConn(connID)
	effects := make([]events.Effect, 0, 2*len(departures))
	for _, d := range departures {
		room := events.TutorChannel(d.TutorID)
		effects = append(effects,
			events.ToRoom(room, events.OutStudentDisconnect, map[string]string{
				"studentId":   d.StudentID,
				"studentName": d.StudentName,
			}),
			events.ToRoom(room, events.OutViewerCountUpdate, d.Remaining),
		)
	}
	return effects
}

// JoinDashboard subscribes connID to live list updates and sends the current list.
func (s *Service) JoinDashboard(ctx context.Context, connID string) []events.Effect {
	effects := []events.Effect{events.Join(connID, events.StudentsChannel)}
	list, err := s.ListLive(ctx)
	if err != nil {
		s.logger.Error("list live tutors", zap.Error(err))
		return effects
	}
	return append(effects, events.ToConn(connID, events.OutLiveTutorsData, list))
}

// ListLive returns approved tutors flagged live, images resolved.
func (s *Service) ListLive(ctx context.Context) ([]models.LiveTutor, error) {
	list, err := s.tutors.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.LiveTutor{}
	}
	if s.images != nil {
		for i := range list {
			list[i].Image = s.images.ResolveImageURL(ctx, list[i].Image)
		}
	}
	return list, nil
}

func (s *Service) publishLive(ctx context.Context) []events.Effect {
	list, err := s.ListLive(ctx)
	if err != nil {
		s.logger.Error("list live tutors", zap.Error(err))
		return nil
	}
	return []events.Effect{events.ToRoom(events.StudentsChannel, events.OutLiveTutorsData, list)}
}
