// Package webchat is a browser chat transport: visitors connect over a
// WebSocket identified by their chat id, send messages and button presses,
// and receive the bot's replies on the same socket.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/conversation"
	"github.com/poddon/concierge/pkg/logging"
)

// ErrNoSession is returned when a reply targets a chat with no open socket.
var ErrNoSession = errors.New("webchat: no active session for chat")

const (
	historyOnConnect = 50
	writeTimeout     = 10 * time.Second
	errorText        = "Не удалось отправить сообщение. Попробуй ещё раз."
)

// Publisher enqueues inbound updates.
type Publisher interface {
	Enqueue(ctx context.Context, upd conversation.Update) (string, error)
}

// Handler manages web chat connections and implements chat.Messenger.
type Handler struct {
	publisher  Publisher
	transcript TranscriptStore
	upgrader   websocket.Upgrader
	logger     *logging.Logger

	mu       sync.RWMutex
	sessions map[int64]*session
}

type session struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

func (s *session) write(msg OutboundMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "callback", "ping"
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
}

// OutboundMessage is what the widget receives.
type OutboundMessage struct {
	Type        string          `json:"type"` // "message", "history", "pong", "error"
	Text        string          `json:"text,omitempty"`
	Buttons     [][]chat.Button `json:"buttons,omitempty"`
	Attachments []string        `json:"attachments,omitempty"`
	Messages    []Entry         `json:"messages,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler. allowedOrigins of nil or "*"
// accepts every origin.
func NewHandler(publisher Publisher, transcript TranscriptStore, allowedOrigins []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		publisher:  publisher,
		transcript: transcript,
		logger:     logger,
		sessions:   make(map[int64]*session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

var _ chat.Messenger = (*Handler)(nil)

// identity reads the visitor from the query string: chat (required), user
// (defaults to chat), username and name.
func identity(r *http.Request) (chat.User, int64, bool) {
	q := r.URL.Query()
	chatID, err := strconv.ParseInt(q.Get("chat"), 10, 64)
	if err != nil || chatID == 0 {
		return chat.User{}, 0, false
	}
	userID := chatID
	if raw := q.Get("user"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			userID = id
		}
	}
	return chat.User{ID: userID, Username: q.Get("username"), DisplayName: q.Get("name")}, chatID, true
}

// HandleWebSocket upgrades to WebSocket and relays updates until the
// visitor disconnects. A newer connection for the same chat replaces the
// older one.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, chatID, ok := identity(r)
	if !ok {
		http.Error(w, "chat parameter required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s := &session{conn: conn}
	if h.transcript != nil {
		if history, err := h.transcript.List(r.Context(), chatID, historyOnConnect); err == nil && len(history) > 0 {
			_ = s.write(OutboundMessage{Type: "history", Messages: history})
		}
	}

	h.mu.Lock()
	h.sessions[chatID] = s
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[chatID] == s {
			delete(h.sessions, chatID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "chat_id", chatID, "user_id", user.ID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "chat_id", chatID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = s.write(OutboundMessage{Type: "pong"})
		case "message", "callback":
			upd, ok := buildUpdate(user, chatID, msg)
			if !ok {
				continue
			}
			if err := h.accept(r.Context(), upd); err != nil {
				_ = s.write(OutboundMessage{Type: "error", Text: errorText})
			}
		}
	}
}

func buildUpdate(user chat.User, chatID int64, msg InboundMessage) (conversation.Update, bool) {
	if msg.Type == "callback" {
		if strings.TrimSpace(msg.Data) == "" {
			return conversation.Update{}, false
		}
		return conversation.Update{
			Kind:     conversation.KindCallback,
			Callback: &chat.Callback{User: user, ChatID: chatID, Data: msg.Data},
		}, true
	}
	if strings.TrimSpace(msg.Text) == "" {
		return conversation.Update{}, false
	}
	return conversation.Update{
		Kind:    conversation.KindMessage,
		Message: &chat.Message{User: user, ChatID: chatID, Text: msg.Text},
	}, true
}

func (h *Handler) accept(ctx context.Context, upd conversation.Update) error {
	chatID := upd.ChatID()
	if h.transcript != nil {
		entry := Entry{Role: "user", Timestamp: time.Now().UTC()}
		if upd.Kind == conversation.KindCallback {
			entry.Role, entry.Text = "button", upd.Callback.Data
		} else {
			entry.Text = upd.Message.Text
		}
		if err := h.transcript.Append(ctx, chatID, entry); err != nil {
			h.logger.Warn("webchat: transcript append failed", "chat_id", chatID, "error", err)
		}
	}
	if _, err := h.publisher.Enqueue(ctx, upd); err != nil {
		h.logger.Error("webchat: failed to enqueue update", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}

// Send pushes a reply to the chat's open socket.
func (h *Handler) Send(ctx context.Context, reply chat.Reply) error {
	if h.transcript != nil && reply.Text != "" {
		if err := h.transcript.Append(ctx, reply.ChatID, Entry{Role: "bot", Text: reply.Text, Timestamp: time.Now().UTC()}); err != nil {
			h.logger.Warn("webchat: transcript append failed", "chat_id", reply.ChatID, "error", err)
		}
	}

	h.mu.RLock()
	s, ok := h.sessions[reply.ChatID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.write(OutboundMessage{
		Type:        "message",
		Text:        reply.Text,
		Buttons:     reply.Buttons,
		Attachments: reply.Attachments,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Sessions is the number of open sockets.
func (h *Handler) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleMessage is the HTTP fallback for sending a message or button press.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID   int64  `json:"chat_id"`
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Text     string `json:"text"`
		Data     string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		req.UserID = req.ChatID
	}
	kind := "message"
	if req.Data != "" {
		kind = "callback"
	}
	upd, ok := buildUpdate(chat.User{ID: req.UserID, Username: req.Username, DisplayName: req.Name}, req.ChatID,
		InboundMessage{Type: kind, Text: req.Text, Data: req.Data})
	if req.ChatID == 0 || !ok {
		http.Error(w, "chat_id and text or data are required", http.StatusBadRequest)
		return
	}
	if err := h.accept(r.Context(), upd); err != nil {
		http.Error(w, "failed to queue message", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// HandleHistory returns the transcript for ?chat=<id>.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	_, chatID, ok := identity(r)
	if !ok {
		http.Error(w, "chat parameter required", http.StatusBadRequest)
		return
	}

	history := []Entry{}
	if h.transcript != nil {
		msgs, err := h.transcript.List(r.Context(), chatID, 100)
		if err != nil {
			h.logger.Error("webchat: failed to load history", "error", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		history = append(history, msgs...)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": history})
}
