package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlive/backend/internal/events"
)

type viewerMap map[string]string

func (m viewerMap) ViewerConn(tutorID, studentID string) (string, bool) {
	c, ok := m[tutorID+"/"+studentID]
	return c, ok
}

var sdp = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

func TestRouter_OfferResolvesViewer(t *testing.T) {
	r := NewRouter(viewerMap{"t1/s1": "c-s1"}, nil)

	effects := r.Offer(&events.TutorOffer{TutorID: "t1", StudentID: "s1", Offer: sdp})
	require.Len(t, effects, 1)
	assert.Equal(t, events.EffectEmitConn, effects[0].Kind)
	assert.Equal(t, "c-s1", effects[0].ConnID)
	assert.Equal(t, events.OutTutorOffer, effects[0].Event)
	assert.JSONEq(t, string(sdp), string(effects[0].Payload.(OfferPayload).Offer))
}

func TestRouter_OfferToUnknownViewerIsDropped(t *testing.T) {
	r := NewRouter(viewerMap{}, nil)
	assert.Empty(t, r.Offer(&events.TutorOffer{TutorID: "t1", StudentID: "ghost", Offer: sdp}))
}

func TestRouter_AnswerTaggedToTutorChannel(t *testing.T) {
	r := NewRouter(viewerMap{}, nil)
	effects := r.Answer("c-s1", &events.StudentAnswer{TutorID: "t1", StudentID: "s1", Answer: sdp})
	require.Len(t, effects, 1)
	assert.Equal(t, events.ToRoom("tutor-t1", events.OutStudentAnswer, AnswerPayload{
		StudentID: "s1", Answer: sdp, ConnectionID: "c-s1",
	}), effects[0])
}

func TestRouter_CandidateDirections(t *testing.T) {
	r := NewRouter(viewerMap{"t1/s1": "c-s1"}, nil)
	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 1.2.3.4 5 typ host"}`)

	up := r.Candidate("c-s1", &events.ICECandidate{TutorID: "t1", StudentID: "s1", Role: events.RoleStudent, Candidate: cand})
	require.Len(t, up, 1)
	assert.Equal(t, events.EffectEmitRoom, up[0].Kind)
	assert.Equal(t, "tutor-t1", up[0].Room)
	assert.Equal(t, "s1", up[0].Payload.(CandidatePayload).StudentID)

	down := r.Candidate("c-tutor", &events.ICECandidate{TutorID: "t1", StudentID: "s1", Role: events.RoleTutor, Candidate: cand})
	require.Len(t, down, 1)
	assert.Equal(t, events.ToConn("c-s1", events.OutICECandidate, CandidatePayload{Candidate: cand, Role: events.RoleTutor}), down[0])

	assert.Empty(t, r.Candidate("c-tutor", &events.ICECandidate{TutorID: "t1", StudentID: "gone", Role: events.RoleTutor, Candidate: cand}))
}
