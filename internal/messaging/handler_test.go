package messaging

import (
	"context"
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
)

type recordingPublisher struct {
	effects []events.Effect
}

func (p *recordingPublisher) Apply(_ context.Context, effects []events.Effect) {
	p.effects = append(p.effects, effects...)
}

func TestHandler_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	svc := NewService(memstore.NewMessages(), nil)
	svc.SendMessage(ctx, "c", &events.ChatMessage{RoomID: "A_U", SenderID: "A", ReceiverID: "U", Message: "hey"})

	pub := &recordingPublisher{}
	h := NewHandler(svc, pub, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, "U") })
	r.GET("/messages/unseen", h.Unseen)
	r.GET("/messages/inbox", h.Inbox)
	r.GET("/messages/:contactId", h.Conversation)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/messages/unseen")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"count":1}}`, w.Body.String())

	w = get("/messages/unseen?contactId=A")
	assert.JSONEq(t, `{"success":true,"data":{"contactId":"A","count":1}}`, w.Body.String())

	w = get("/messages/inbox")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"contactId":"A"`)

	w = get("/messages/A")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"roomId":"A_U"`)
	assert.Len(t, pub.effects, 2)

	w = get("/messages/unseen")
	assert.JSONEq(t, `{"success":true,"data":{"count":0}}`, w.Body.String())
}
