package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DirectChat/middleware"
	"DirectChat/pkg/cache"
	"DirectChat/pkg/config"
	"DirectChat/pkg/database"
	"DirectChat/pkg/presence"
	"DirectChat/pkg/realtime"
	"DirectChat/pkg/services"
	"DirectChat/pkg/workerpool"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type app struct {
	router *gin.Engine
	hub    *realtime.Hub
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.JWTSecret = "routes-test-secret"

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(database.Options{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	registry := presence.NewMemory()
	dir := services.NewDirectory(db, registry, cache.New(100), time.Minute)
	notifier := &forward{}
	convs := services.NewConversationService(db, dir, registry, notifier)
	msgs := services.NewMessageService(db, convs, notifier)
	hub := realtime.NewHub(registry, convs, realtime.Options{})
	dispatcher := realtime.NewDispatcher(hub, workerpool.New("routes-test", 1, 64), nil)
	notifier.Notifier = dispatcher
	t.Cleanup(dispatcher.Close)

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:            db,
		Directory:     dir,
		Conversations: convs,
		Messages:      msgs,
		Hub:           hub,
		Limiter:       middleware.NewLimiter(time.Minute, 100),
	})
	return &app{router: r, hub: hub}
}

type forward struct {
	services.Notifier
}

func (a *app) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// signup registers and logs in, returning the user id and access token.
func (a *app) signup(t *testing.T, name string) (uint, string) {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/register", "", map[string]string{
		"email":            name + "@example.com",
		"username":         name,
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = a.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    name + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, code, body)
	return uint(body["user_id"].(float64)), body["access_token"].(string)
}

func nested(t *testing.T, body map[string]any, key string) map[string]any {
	t.Helper()
	v, ok := body[key].(map[string]any)
	require.True(t, ok, "missing %q in %v", key, body)
	return v
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newApp(t)
	code, _ := a.do(t, http.MethodGet, "/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(t, http.MethodGet, "/conversations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newApp(t)
	_, tok := a.signup(t, "ana")

	code, _ := a.do(t, http.MethodPost, "/logout", tok, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, "/conversations", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMessagingFlow(t *testing.T) {
	a := newApp(t)
	anaID, ana := a.signup(t, "ana")
	benID, ben := a.signup(t, "ben")
	_, cara := a.signup(t, "cara")

	code, body := a.do(t, http.MethodPost, "/conversations", ana, map[string]any{"user_id": benID})
	require.Equal(t, http.StatusCreated, code, body)
	convID := uint(nested(t, body, "conversation")["id"].(float64))

	code, _ = a.do(t, http.MethodPost, "/conversations", ben, map[string]any{"user_id": anaID})
	assert.Equal(t, http.StatusOK, code, "second open returns the same conversation")

	code, body = a.do(t, http.MethodPost, "/messages", ana, map[string]any{"recipient_id": benID, "content": "  hi ben  "})
	require.Equal(t, http.StatusCreated, code, body)
	msg := nested(t, body, "message")
	assert.Equal(t, "hi ben", msg["content"])
	assert.Equal(t, float64(convID), msg["conversation_id"])
	msgID := uint(msg["id"].(float64))

	code, body = a.do(t, http.MethodGet, "/messages/unread-count", ben, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["unread_count"])

	path := fmt.Sprintf("/conversations/%d/messages", convID)
	code, body = a.do(t, http.MethodGet, path, ben, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 1)

	// outsiders cannot tell the conversation exists
	code, _ = a.do(t, http.MethodGet, path, cara, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(t, http.MethodGet, fmt.Sprintf("/conversations/%d", convID), cara, nil)
	assert.Equal(t, http.StatusNotFound, code)

	msgPath := fmt.Sprintf("/messages/%d", msgID)
	code, _ = a.do(t, http.MethodPut, msgPath, ben, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, http.MethodPut, msgPath, cara, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = a.do(t, http.MethodPut, msgPath, ana, map[string]string{"content": "hi ben!"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "hi ben!", nested(t, body, "message")["content"])

	code, body = a.do(t, http.MethodPost, fmt.Sprintf("/conversations/%d/read", convID), ben, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["updated"])

	code, _ = a.do(t, http.MethodDelete, msgPath, ben, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, http.MethodDelete, msgPath, ana, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodDelete, msgPath, ana, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSendValidation(t *testing.T) {
	a := newApp(t)
	anaID, ana := a.signup(t, "ana")
	benID, _ := a.signup(t, "ben")

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"to self", map[string]any{"recipient_id": anaID, "content": "me"}, http.StatusBadRequest},
		{"blank", map[string]any{"recipient_id": benID, "content": "   "}, http.StatusBadRequest},
		{"too long", map[string]any{"recipient_id": benID, "content": strings.Repeat("x", services.MaxContentLength+1)}, http.StatusBadRequest},
		{"unknown type", map[string]any{"recipient_id": benID, "content": "x", "message_type": "video"}, http.StatusBadRequest},
		{"unknown recipient", map[string]any{"recipient_id": 999, "content": "x"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := a.do(t, http.MethodPost, "/messages", ana, tc.body)
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestDeleteConversationHidesFromList(t *testing.T) {
	a := newApp(t)
	_, ana := a.signup(t, "ana")
	benID, ben := a.signup(t, "ben")

	code, body := a.do(t, http.MethodPost, "/messages", ana, map[string]any{"recipient_id": benID, "content": "hello"})
	require.Equal(t, http.StatusCreated, code)
	convID := uint(nested(t, body, "message")["conversation_id"].(float64))

	code, _ = a.do(t, http.MethodDelete, fmt.Sprintf("/conversations/%d", convID), ana, nil)
	require.Equal(t, http.StatusOK, code)

	_, body = a.do(t, http.MethodGet, "/conversations", ana, nil)
	assert.Empty(t, body["conversations"])
	_, body = a.do(t, http.MethodGet, "/conversations", ben, nil)
	assert.Len(t, body["conversations"], 1)
}

func TestSearchUsers(t *testing.T) {
	a := newApp(t)
	_, ana := a.signup(t, "ana")
	a.signup(t, "anabel")
	a.signup(t, "ben")

	code, body := a.do(t, http.MethodGet, "/users/search?q=ana", ana, nil)
	require.Equal(t, http.StatusOK, code, body)
	users, ok := body["users"].([]any)
	require.True(t, ok, body)
	require.Len(t, users, 1)
	assert.Equal(t, "anabel", users[0].(map[string]any)["username"])
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) realtime.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var env realtime.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == typ {
			return env
		}
	}
}

func TestWebsocketHandshakeRejectsBadToken(t *testing.T) {
	a := newApp(t)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "garbage"), nil)
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "Authentication error")
}

func TestWebsocketReceivesNewMessage(t *testing.T) {
	a := newApp(t)
	anaID, ana := a.signup(t, "ana")
	benID, ben := a.signup(t, "ben")

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ben), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	env := readUntil(t, conn, realtime.EventConnected)
	var hello map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &hello))
	assert.Equal(t, float64(benID), hello["user_id"])
	assert.True(t, a.hub.IsOnline(t.Context(), benID))

	code, _ := a.do(t, http.MethodPost, "/messages", ana, map[string]any{"recipient_id": benID, "content": "ping"})
	require.Equal(t, http.StatusCreated, code)

	env = readUntil(t, conn, realtime.EventNewMessage)
	var got struct {
		SenderID uint   `json:"sender_id"`
		Content  string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, anaID, got.SenderID)
	assert.Equal(t, "ping", got.Content)
	assert.NotZero(t, env.ConversationID)
}
