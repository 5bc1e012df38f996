package conversation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/pkg/logging"
)

func TestPublisherEnqueue(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, logging.Default())

	id, err := publisher.Enqueue(context.Background(), Update{
		Kind:    KindMessage,
		Message: &chat.Message{User: chat.User{ID: 7}, ChatID: 7, Text: "привет"},
	})
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated update id")
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(queue.sent))
	}
	if queue.groups[0] != "7" {
		t.Fatalf("expected chat id as group key, got %q", queue.groups[0])
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(queue.sent[0]), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.ID != id || payload.Update.ID != id {
		t.Fatalf("expected id %s in payload, got %s / %s", id, payload.ID, payload.Update.ID)
	}
	if payload.Update.Message.Text != "привет" {
		t.Fatalf("unexpected message %+v", payload.Update.Message)
	}
	if payload.Update.ReceivedAt.IsZero() {
		t.Fatal("expected received_at to be stamped")
	}
}

func TestPublisherRejectsInvalidUpdates(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, nil)

	cases := []Update{
		{Kind: KindMessage},
		{Kind: KindCallback, Callback: &chat.Callback{}},
		{Kind: "inline_query"},
	}
	for _, upd := range cases {
		if _, err := publisher.Enqueue(context.Background(), upd); err == nil {
			t.Fatalf("expected error for %+v", upd)
		}
	}
	if len(queue.sent) != 0 {
		t.Fatalf("expected nothing enqueued, got %d", len(queue.sent))
	}
}

type stubQueue struct {
	sent   []string
	groups []string
}

func (s *stubQueue) Send(ctx context.Context, groupKey, body string) error {
	s.sent = append(s.sent, body)
	s.groups = append(s.groups, groupKey)
	return nil
}

func (s *stubQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(ctx context.Context, receiptHandle string) error {
	return nil
}
