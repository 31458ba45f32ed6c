package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/memstore"
	"github.com/tutorlive/backend/internal/middleware"
	"github.com/tutorlive/backend/internal/models"
)

type recordingPublisher struct {
	effects []events.Effect
}

func (p *recordingPublisher) Apply(_ context.Context, effects []events.Effect) {
	p.effects = append(p.effects, effects...)
}

func newTestRouter(svc *Service, pub Publisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, pub, zap.NewNop())
	r := gin.New()
	asTutor := func(c *gin.Context) { c.Set(middleware.ContextUserID, "t1") }
	r.GET("/live-tutors", h.ListLive)
	r.POST("/start-live", asTutor, h.StartLive)
	r.POST("/stop-live", asTutor, h.StopLive)
	r.GET("/tutors/:id/viewers", h.Viewers)
	return r
}

func TestHandler_StartListStop(t *testing.T) {
	store := memstore.NewTutors(models.Tutor{ID: "t1", Name: "Ada", Approved: true})
	svc := newTestService(store)
	pub := &recordingPublisher{}
	r := newTestRouter(svc, pub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start-live", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.effects, 1)
	assert.Equal(t, events.StudentsChannel, pub.effects[0].Room)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live-tutors", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool               `json:"success"`
		Data    []models.LiveTutor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []models.LiveTutor{{ID: "t1", Name: "Ada"}}, body.Data)

	svc.JoinViewer("c1", &events.StudentJoin{TutorID: "t1", StudentID: "s1", StudentName: "Sam"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutors/t1/viewers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stop-live", nil))
	require.Equal(t, http.StatusOK, w.Code)
	last := pub.effects[len(pub.effects)-1]
	assert.Equal(t, events.OutTutorStoppedLive, last.Event)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutors/t1/viewers", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_StartLiveReportsStoreFailure(t *testing.T) {
	svc := newTestService(&failingTutors{})
	pub := &recordingPublisher{}
	r := newTestRouter(svc, pub)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start-live", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Empty(t, pub.effects)
	assert.False(t, svc.Table().IsLive("t1"))

	svc.Table().Start("t1", t0)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stop-live", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, pub.effects)
	assert.True(t, svc.Table().IsLive("t1"))
}

func TestHandler_StartLiveKeepsJoinedViewers(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewTutors(models.Tutor{ID: "t1", Name: "Ada", Approved: true})
	svc := newTestService(store)
	r := newTestRouter(svc, &recordingPublisher{})

	svc.StartSession(ctx, "c-tutor", "t1")
	svc.JoinViewer("c-s1", &events.StudentJoin{TutorID: "t1", StudentID: "s1"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start-live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, svc.Table().ViewerCount("t1"))
	conn, ok := svc.Table().ViewerConn("t1", "s1")
	assert.True(t, ok)
	assert.Equal(t, "c-s1", conn)
}

func TestHandler_ViewersOnlyForOwnSession(t *testing.T) {
	store := memstore.NewTutors(models.Tutor{ID: "t1", Approved: true}, models.Tutor{ID: "t2", Approved: true})
	svc := newTestService(store)
	r := newTestRouter(svc, &recordingPublisher{})

	svc.Table().Start("t2", t0)
	svc.JoinViewer("c-s1", &events.StudentJoin{TutorID: "t2", StudentID: "s1"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutors/t2/viewers", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	svc.Table().Start("t1", t0)
	svc.JoinViewer("c-s2", &events.StudentJoin{TutorID: "t1", StudentID: "s2", StudentName: "Sam"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutors/t1/viewers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"studentId":"s2"`)
	assert.NotContains(t, w.Body.String(), "c-s2")
}
