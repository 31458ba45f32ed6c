package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
)

func newWSServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validate := func(token string) (string, string, error) {
		if token != "good" {
			return "", "", errors.New("bad token")
		}
		return "u1", "user", nil
	}
	r := gin.New()
	r.GET("/ws", ServeWs(env.hub, zap.NewNop(), validate, ClientOptions{SendBuffer: 16}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEvent(t *testing.T, conn *websocket.Conn, event string) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			return msg
		}
	}
}

func TestServeWs_EndToEnd(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	srv := newWSServer(t, env)

	dash, _, err := dial(t, srv, "good")
	require.NoError(t, err)
	defer dash.Close()
	tutor, _, err := dial(t, srv, "good")
	require.NoError(t, err)
	defer tutor.Close()

	// A garbage frame must not end the read loop.
	require.NoError(t, dash.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, dash.WriteJSON(WSMessage{Event: "joinStudentDashboard"}))
	msg := readEvent(t, dash, events.OutLiveTutorsData)
	assert.JSONEq(t, `[]`, string(msg.Data))

	require.NoError(t, tutor.WriteJSON(map[string]any{"event": "tutor-start", "data": map[string]string{"tutorId": "T"}}))
	msg = readEvent(t, dash, events.OutLiveTutorsData)
	assert.Contains(t, string(msg.Data), `"_id":"T"`)

	require.Eventually(t, func() bool { return env.hub.Registry().Len() == 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, dash.Close())
	assert.Eventually(t, func() bool { return env.hub.Registry().Len() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestServeWs_RejectsBadToken(t *testing.T) {
	srv := newWSServer(t, newTestEnv(t, nil, nil))

	_, resp, err := dial(t, srv, "bad")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestICEServers(t *testing.T) {
	servers := ICEServers([]string{"stun:stun.l.google.com:19302", "", "turn:turn.local:3478"}, "user", "pass")
	require.Len(t, servers, 2)
	assert.Empty(t, servers[0].Username)
	assert.Equal(t, "user", servers[1].Username)
	assert.Equal(t, "pass", servers[1].Credential)
}
