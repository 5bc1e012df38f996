package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poddon/concierge/internal/chat"
)

// Queue carries encoded updates from the HTTP edge to the worker pool.
type Queue interface {
	// Send enqueues body. Messages sharing groupKey are delivered in order
	// by queues that support grouping.
	Send(ctx context.Context, groupKey, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// UpdateKind tells a free-text message from a button press.
type UpdateKind string

const (
	KindMessage  UpdateKind = "message"
	KindCallback UpdateKind = "callback"
)

// Update is one inbound event from the chat platform.
type Update struct {
	ID         string         `json:"id"`
	Kind       UpdateKind     `json:"kind"`
	Message    *chat.Message  `json:"message,omitempty"`
	Callback   *chat.Callback `json:"callback,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// UserID is the sender of the update, or 0 when the update is empty.
func (u Update) UserID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.User.ID
	case u.Callback != nil:
		return u.Callback.User.ID
	}
	return 0
}

// ChatID is the chat replies go to, or 0 when the update is empty.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.ChatID
	case u.Callback != nil:
		return u.Callback.ChatID
	}
	return 0
}

// Validate checks that the kind matches the populated body.
func (u Update) Validate() error {
	switch u.Kind {
	case KindMessage:
		if u.Message == nil {
			return fmt.Errorf("conversation: message update without message")
		}
	case KindCallback:
		if u.Callback == nil || u.Callback.Data == "" {
			return fmt.Errorf("conversation: callback update without data")
		}
	default:
		return fmt.Errorf("conversation: unknown update kind %q", u.Kind)
	}
	return nil
}

type queuePayload struct {
	ID     string `json:"id"`
	Update Update `json:"update"`
}

func encodePayload(upd Update) (queuePayload, string, error) {
	if upd.ID == "" {
		upd.ID = uuid.NewString()
	}
	payload := queuePayload{ID: upd.ID, Update: upd}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
