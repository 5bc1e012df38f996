package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/poddon/concierge/internal/conversation"
	"github.com/poddon/concierge/pkg/logging"
)

// SecretHeader carries the shared webhook secret of the chat platform.
const SecretHeader = "X-Webhook-Secret"

const maxUpdateBytes = 64 << 10

// UpdateEnqueuer queues inbound updates for the worker pool.
type UpdateEnqueuer interface {
	Enqueue(ctx context.Context, upd conversation.Update) (string, error)
}

// UpdatesHandler receives chat platform updates over HTTP.
type UpdatesHandler struct {
	queue  UpdateEnqueuer
	secret string
	logger *logging.Logger
}

// NewUpdatesHandler builds the webhook. An empty secret disables the check.
func NewUpdatesHandler(queue UpdateEnqueuer, secret string, logger *logging.Logger) *UpdatesHandler {
	if queue == nil {
		panic("handlers: update queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &UpdatesHandler{queue: queue, secret: secret, logger: logger}
}

// ServeHTTP handles POST /v1/updates.
func (h *UpdatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var upd conversation.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update body")
		return
	}
	if err := upd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.queue.Enqueue(r.Context(), upd)
	if err != nil {
		h.logger.Error("failed to enqueue update", "error", err, "kind", upd.Kind, "user_id", upd.UserID())
		writeError(w, http.StatusServiceUnavailable, "update queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": id})
}
