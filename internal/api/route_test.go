package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/api/config"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/store"
	"Parley/internal/service"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	hub    *service.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := service.NewHub(store.NewMemoryStore(), identity.NewDevProvider())
	t.Cleanup(func() { hub.CloseAll(context.Background()) })
	return &testServer{t: t, router: SetupRouter(NewHandlersGroup(hub), &config.Config{}), hub: hub}
}

func (s *testServer) do(method, path, token string, body any) envelope {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (s *testServer) signIn(credential string) string {
	s.t.Helper()
	login := s.do(http.MethodGet, "/api/auth/login", "", nil)
	require.Equal(s.t, 200, login.Code)
	var l struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
	require.NoError(s.t, json.Unmarshal(login.Data, &l))
	assert.Contains(s.t, l.URL, "state=")

	cb := s.do(http.MethodPost, "/api/auth/callback", "", map[string]string{"code": credential, "state": l.State})
	require.Equal(s.t, 200, cb.Code, cb.Message)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(cb.Data, &out))
	require.NotEmpty(s.t, out.Token)
	return out.Token
}

func (s *testServer) state(token string) service.ViewState {
	s.t.Helper()
	env := s.do(http.MethodGet, "/api/chat/state", token, nil)
	require.Equal(s.t, 200, env.Code, env.Message)
	var v service.ViewState
	require.NoError(s.t, json.Unmarshal(env.Data, &v))
	return v
}

func TestRouter_Ping(t *testing.T) {
	s := newTestServer(t)
	env := s.do(http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, 200, env.Code)
	assert.Equal(t, "pong", env.Message)
}

func TestRouter_CallbackRejectsForgedState(t *testing.T) {
	s := newTestServer(t)
	env := s.do(http.MethodPost, "/api/auth/callback", "", map[string]string{"code": "alice", "state": "forged"})
	assert.Equal(t, service.Unauthorized, env.Code)
	assert.Zero(t, s.hub.Len())
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, service.Unauthorized, s.do(http.MethodGet, "/api/chat/state", "", nil).Code)
	assert.Equal(t, service.Unauthorized, s.do(http.MethodGet, "/api/chat/state", "garbage", nil).Code)
}

func TestRouter_ChatFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signIn("alice:Alice")
	bob := s.signIn("bob:Bob")

	v := s.state(alice)
	assert.Equal(t, service.PhaseNoSelection, v.Phase)
	assert.Equal(t, "alice", v.Self.ID)

	require.Eventually(t, func() bool {
		for _, c := range s.state(alice).Contacts {
			if c.ID == "bob" && c.Online {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	env := s.do(http.MethodPost, "/api/chat/select", alice, map[string]string{"counterpart_id": "ghost"})
	assert.Equal(t, service.NotFound, env.Code)

	env = s.do(http.MethodPost, "/api/chat/select", alice, map[string]string{"counterpart_id": "bob"})
	require.Equal(t, 200, env.Code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, service.PhaseConversationOpen, v.Phase)
	assert.Equal(t, "alice_bob", v.ConversationKey)

	env = s.do(http.MethodPost, "/api/chat/messages", alice, map[string]string{"body": "   "})
	assert.Equal(t, service.BadRequest, env.Code)

	env = s.do(http.MethodPost, "/api/chat/messages", alice, map[string]string{"body": "hi bob"})
	require.Equal(t, 200, env.Code, env.Message)
	var msg struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &msg))

	require.Eventually(t, func() bool {
		return len(s.state(alice).Messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env = s.do(http.MethodPut, "/api/chat/messages/"+msg.ID, alice, map[string]string{"body": "hello bob"})
	require.Equal(t, 200, env.Code, env.Message)
	env = s.do(http.MethodPut, "/api/chat/messages/unknown", alice, map[string]string{"body": "x"})
	assert.Equal(t, service.NotFound, env.Code)

	require.Eventually(t, func() bool {
		for _, id := range s.state(bob).Unread {
			if id == "alice" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	env = s.do(http.MethodDelete, "/api/chat/messages/"+msg.ID, alice, nil)
	require.Equal(t, 200, env.Code, env.Message)
	env = s.do(http.MethodDelete, "/api/chat/messages/"+msg.ID, alice, nil)
	require.Equal(t, 200, env.Code, env.Message)

	env = s.do(http.MethodPost, "/api/auth/logout", alice, nil)
	require.Equal(t, 200, env.Code, env.Message)
	assert.Equal(t, service.Unauthorized, s.do(http.MethodGet, "/api/chat/state", alice, nil).Code)
}

func TestRouter_WebSocketPushesViewState(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn("alice")

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var v service.ViewState
	require.NoError(t, json.Unmarshal(payload, &v))
	assert.Equal(t, service.PhaseNoSelection, v.Phase)
	assert.Equal(t, "alice", v.Self.ID)
}

func TestRouter_WebSocketRejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
