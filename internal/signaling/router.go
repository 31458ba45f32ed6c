// Package signaling relays WebRTC session setup between a tutor and its
// viewers. Payloads are forwarded verbatim and never inspected.
package signaling

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
)

// ViewerLocator resolves a viewer of a live session to its connection.
type ViewerLocator interface {
	ViewerConn(tutorID, studentID string) (string, bool)
}

// OfferPayload is delivered to a single viewer.
type OfferPayload struct {
	Offer   json.RawMessage `json:"offer"`
	TutorID string          `json:"tutorId"`
}

// AnswerPayload is delivered to the tutor channel, tagged with the viewer.
type AnswerPayload struct {
	StudentID    string          `json:"studentId"`
	Answer       json.RawMessage `json:"answer"`
	ConnectionID string          `json:"connectionId"`
}

// CandidatePayload carries a trickled ICE candidate. StudentID and
// ConnectionID are set only on candidates travelling to the tutor.
type CandidatePayload struct {
	Candidate    json.RawMessage `json:"candidate"`
	Role         string          `json:"role"`
	StudentID    string          `json:"studentId,omitempty"`
	ConnectionID string          `json:"connectionId,omitempty"`
}

// Router routes signaling messages on {tutorId, studentId, role} only.
type Router struct {
	viewers ViewerLocator
	logger  *zap.Logger
}

// NewRouter creates a signaling router.
func NewRouter(viewers ViewerLocator, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{viewers: viewers, logger: logger}
}

// Offer forwards a tutor's offer to one viewer. Unknown viewers are dropped.
func (r *Router) Offer(in *events.TutorOffer) []events.Effect {
	conn, ok := r.viewers.ViewerConn(in.TutorID, in.StudentID)
	if !ok {
		r.logger.Debug("offer dropped, viewer not found",
			zap.String("tutor_id", in.TutorID), zap.String("student_id", in.StudentID))
		return nil
	}
	return []events.Effect{
		events.ToConn(conn, events.OutTutorOffer, OfferPayload{Offer: in.Offer, TutorID: in.TutorID}),
	}
}

// Answer forwards a viewer's answer to the tutor channel.
func (r *Router) Answer(connID string, in *events.StudentAnswer) []events.Effect {
	return []events.Effect{
		events.ToRoom(events.TutorChannel(in.TutorID), events.OutStudentAnswer, AnswerPayload{
			StudentID:    in.StudentID,
			Answer:       in.Answer,
			ConnectionID: orDefault(in.ConnectionID, connID),
		}),
	}
}

// Candidate forwards an ICE candidate. Viewer candidates go to the tutor
// channel; tutor candidates resolve to the viewer's connection.
func (r *Router) Candidate(connID string, in *events.ICECandidate) []events.Effect {
	if in.Role == events.RoleStudent {
		return []events.Effect{
			events.ToRoom(events.TutorChannel(in.TutorID), events.OutICECandidate, CandidatePayload{
				Candidate:    in.Candidate,
				Role:         in.Role,
				StudentID:    in.StudentID,
				ConnectionID: orDefault(in.ConnectionID, connID),
			}),
		}
	}
	conn, ok := r.viewers.ViewerConn(in.TutorID, in.StudentID)
	if !ok {
		return nil
	}
	return []events.Effect{
		events.ToConn(conn, events.OutICECandidate, CandidatePayload{Candidate: in.Candidate, Role: in.Role}),
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
