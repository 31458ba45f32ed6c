package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/memstore"
	"github.com/tutorlive/backend/internal/models"
)

func newTestService(tutors TutorStore) *Service {
	s := NewService(NewTable(), tutors, nil)
	s.now = func() time.Time { return t0 }
	return s
}

func liveList(t *testing.T, effects []events.Effect) []models.LiveTutor {
	t.Helper()
	for _, e := range effects {
		if e.Event == events.OutLiveTutorsData {
			list, ok := e.Payload.([]models.LiveTutor)
			require.True(t, ok)
			return list
		}
	}
	t.Fatalf("no %s effect in %+v", events.OutLiveTutorsData, effects)
	return nil
}

func TestService_StartAndStopUpdateLiveList(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewTutors(models.Tutor{ID: "t1", Name: "Ada", Skills: "math", Approved: true})
	svc := newTestService(store)

	effects := svc.StartSession(ctx, "c-tutor", "t1")
	assert.Equal(t, events.Join("c-tutor", "tutor-t1"), effects[0])
	assert.Equal(t, events.StudentsChannel, effects[1].Room)
	assert.Equal(t, []models.LiveTutor{{ID: "t1", Name: "Ada", Skills: "math"}}, liveList(t, effects))

	list, err := svc.ListLive(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	effects = svc.StopSession(ctx, "t1")
	assert.Empty(t, liveList(t, effects))
	last := effects[len(effects)-1]
	assert.Equal(t, events.ToRoom("tutor-t1", events.OutTutorStoppedLive, nil), last)
	assert.False(t, svc.Table().IsLive("t1"))
}

func TestService_ViewerJoinAndDisconnectScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memstore.NewTutors(models.Tutor{ID: "T", Approved: true}))
	svc.StartSession(ctx, "c-tutor", "T")

	effects := svc.JoinViewer("c-v1", &events.StudentJoin{TutorID: "T", StudentID: "V1", StudentName: "Val"})
	require.Len(t, effects, 3)
	assert.Equal(t, events.Join("c-v1", "tutor-T"), effects[0])
	assert.Equal(t, events.ToRoom("tutor-T", events.OutStudentJoin, map[string]string{
		"studentId": "V1", "connectionId": "c-v1", "studentName": "Val",
	}), effects[1])
	assert.Equal(t, events.ToRoom("tutor-T", events.OutViewerCountUpdate, 1), effects[2])

	effects = svc.Disconnect("c-v1")
	assert.Equal(t, []events.Effect{
		events.ToRoom("tutor-T", events.OutStudentDisconnect, map[string]string{"studentId": "V1", "studentName": "Val"}),
		events.ToRoom("tutor-T", events.OutViewerCountUpdate, 0),
	}, effects)
	assert.Empty(t, svc.Disconnect("c-v1"))
}

func TestService_JoinViewerUsesExplicitConnection(t *testing.T) {
	svc := newTestService(memstore.NewTutors())
	svc.JoinViewer("c-sender", &events.StudentJoin{TutorID: "T", StudentID: "V1", ConnectionID: "c-media"})
	conn, ok := svc.Table().ViewerConn("T", "V1")
	require.True(t, ok)
	assert.Equal(t, "c-media", conn)
}

type failingTutors struct {
	memstore.Tutors
}

func (*failingTutors) SetLive(context.Context, string, bool) error {
	return errors.New("store down")
}

func TestService_DurableFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&failingTutors{})

	effects := svc.StartSession(ctx, "c-tutor", "t1")
	assert.Equal(t, []events.Effect{events.Join("c-tutor", "tutor-t1")}, effects)
	assert.True(t, svc.Table().IsLive("t1"))

	effects = svc.StopSession(ctx, "t1")
	assert.Equal(t, []events.Effect{events.ToRoom("tutor-t1", events.OutTutorStoppedLive, nil)}, effects)
	assert.False(t, svc.Table().IsLive("t1"))
}

func TestService_RestoreFromDurableFlags(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewTutors(
		models.Tutor{ID: "t1", IsLive: true, Approved: true},
		models.Tutor{ID: "t2"},
	)
	svc := newTestService(store)
	require.NoError(t, svc.Restore(ctx))
	assert.Equal(t, []string{"t1"}, svc.Table().Sessions())
}

type prefixResolver string

func (p prefixResolver) ResolveImageURL(_ context.Context, image string) string {
	return string(p) + image
}

func TestService_DashboardJoinResolvesImages(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memstore.NewTutors(models.Tutor{ID: "t1", Image: "a.png", Approved: true, IsLive: true}))
	svc.SetImageResolver(prefixResolver("https://cdn/"))

	effects := svc.JoinDashboard(ctx, "c1")
	require.Len(t, effects, 2)
	assert.Equal(t, events.Join("c1", events.StudentsChannel), effects[0])
	assert.Equal(t, events.EffectEmitConn, effects[1].Kind)
	assert.Equal(t, "https://cdn/a.png", liveList(t, effects)[0].Image)
}

func TestService_Verify(t *testing.T) {
	svc := newTestService(memstore.NewTutors())
	effects := svc.Verify("c1", &events.StudentVerify{StudentID: "s", TutorID: "t"})
	require.Len(t, effects, 1)
	payload := effects[0].Payload.(map[string]any)
	assert.Equal(t, "verified", payload["status"])
	assert.Equal(t, t0.UnixMilli(), payload["serverTime"])
}
