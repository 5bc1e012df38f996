package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/conversation"
	"github.com/poddon/concierge/pkg/logging"
)

type mockPublisher struct {
	mu      sync.Mutex
	updates []conversation.Update
	err     error
}

func (m *mockPublisher) Enqueue(_ context.Context, upd conversation.Update) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.updates = append(m.updates, upd)
	return "upd-1", nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisTranscriptKeepsOrderAndLimit(t *testing.T) {
	store := NewRedisTranscript(setupTestRedis(t))
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, store.Append(ctx, 7, Entry{Role: "user", Text: text}))
	}

	all, err := store.List(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Text)

	recent, err := store.List(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Text)
	assert.Equal(t, "three", recent[1].Text)

	empty, err := store.List(ctx, 8, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWebSocketRoundTrip(t *testing.T) {
	pub := &mockPublisher{}
	transcript := NewRedisTranscript(setupTestRedis(t))
	h := NewHandler(pub, transcript, nil, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?chat=42&name=Алиса"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
	require.Equal(t, 1, h.Sessions())

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "хочу столик"}))
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "callback", Data: "action:menu"}))
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 10*time.Millisecond)

	first := pub.updates[0]
	assert.Equal(t, conversation.KindMessage, first.Kind)
	assert.Equal(t, int64(42), first.Message.ChatID)
	assert.Equal(t, int64(42), first.Message.User.ID)
	assert.Equal(t, "Алиса", first.Message.User.DisplayName)
	assert.Equal(t, "action:menu", pub.updates[1].Callback.Data)

	err = h.Send(context.Background(), chat.Reply{ChatID: 42, Text: "Выбери филиал:",
		Buttons: [][]chat.Button{{{Text: "Большой ПОДДОН", Payload: "menu_branch:big"}}}})
	require.NoError(t, err)
	var out OutboundMessage
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "message", out.Type)
	assert.Equal(t, "Выбери филиал:", out.Text)
	assert.Equal(t, "menu_branch:big", out.Buttons[0][0].Payload)

	history, err := transcript.List(context.Background(), 42, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "button", history[1].Role)
	assert.Equal(t, "bot", history[2].Role)

	assert.ErrorIs(t, h.Send(context.Background(), chat.Reply{ChatID: 99, Text: "x"}), ErrNoSession)
}

func TestWebSocketRequiresChat(t *testing.T) {
	h := NewHandler(&mockPublisher{}, nil, nil, logging.New("error"))
	req := httptest.NewRequest(http.MethodGet, "/v1/webchat/ws", nil)
	w := httptest.NewRecorder()
	h.HandleWebSocket(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessageHTTP(t *testing.T) {
	pub := &mockPublisher{}
	h := NewHandler(pub, nil, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/v1/webchat/message", strings.NewReader(`{"chat_id":5,"text":"привет"}`))
	w := httptest.NewRecorder()
	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.updates, 1)
	assert.Equal(t, int64(5), pub.updates[0].Message.User.ID)

	req = httptest.NewRequest(http.MethodPost, "/v1/webchat/message", strings.NewReader(`{"chat_id":5,"data":"action:quiz"}`))
	w = httptest.NewRecorder()
	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, conversation.KindCallback, pub.updates[1].Kind)

	req = httptest.NewRequest(http.MethodPost, "/v1/webchat/message", strings.NewReader(`{"text":"привет"}`))
	w = httptest.NewRecorder()
	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	pub.err = errors.New("queue full")
	req = httptest.NewRequest(http.MethodPost, "/v1/webchat/message", strings.NewReader(`{"chat_id":5,"text":"ещё"}`))
	w = httptest.NewRecorder()
	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleHistory(t *testing.T) {
	transcript := NewRedisTranscript(setupTestRedis(t))
	require.NoError(t, transcript.Append(context.Background(), 5, Entry{Role: "user", Text: "Привет"}))
	require.NoError(t, transcript.Append(context.Background(), 5, Entry{Role: "bot", Text: "Здравствуй!"}))
	h := NewHandler(nil, transcript, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/v1/webchat/history?chat=5", nil)
	w := httptest.NewRecorder()
	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []Entry `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Здравствуй!", resp.Messages[1].Text)

	req = httptest.NewRequest(http.MethodGet, "/v1/webchat/history", nil)
	w = httptest.NewRecorder()
	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
