package conversation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/poddon/concierge/pkg/logging"
)

// Publisher enqueues inbound updates for the worker pool.
type Publisher struct {
	queue  Queue
	now    func() time.Time
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		now:    time.Now,
		logger: logger,
	}
}

// Enqueue validates upd and publishes it, returning the assigned id.
func (p *Publisher) Enqueue(ctx context.Context, upd Update) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := upd.Validate(); err != nil {
		return "", err
	}
	if upd.ReceivedAt.IsZero() {
		upd.ReceivedAt = p.now().UTC()
	}

	payload, body, err := encodePayload(upd)
	if err != nil {
		return "", err
	}

	if err := p.queue.Send(ctx, strconv.FormatInt(upd.ChatID(), 10), body); err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue update: %w", err)
	}

	p.logger.Debug("update enqueued", "update_id", payload.ID, "kind", upd.Kind, "user_id", upd.UserID())
	return payload.ID, nil
}
