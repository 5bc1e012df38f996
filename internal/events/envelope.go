// Package events publishes domain events (new bookings, status changes,
// issued coupons) to a RabbitMQ topic exchange for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a versioned domain event. EventType doubles as the routing key.
type Event interface {
	EventType() string
}

// Envelope is the wire form of every event.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type EnvelopeOption func(*Envelope)

func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

func WithOccurredAt(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

// WithCorrelationID links the event to the chat update that caused it.
func WithCorrelationID(id string) EnvelopeOption {
	return func(e *Envelope) { e.CorrelationID = strings.TrimSpace(id) }
}

var (
	errMissingAggregate = errors.New("events: aggregate is required")
	errNilEvent         = errors.New("events: event is required")
	nowFunc             = time.Now
)

// NewEnvelope wraps evt for aggregate, e.g. "booking:12" or "user:42".
func NewEnvelope(aggregate string, evt Event, opts ...EnvelopeOption) (Envelope, error) {
	aggregate = strings.TrimSpace(aggregate)
	switch {
	case aggregate == "":
		return Envelope{}, errMissingAggregate
	case evt == nil:
		return Envelope{}, errNilEvent
	case strings.TrimSpace(evt.EventType()) == "":
		return Envelope{}, fmt.Errorf("events: %T has no event type", evt)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", evt.EventType(), err)
	}
	env := Envelope{
		EventID:    uuid.New(),
		EventType:  strings.TrimSpace(evt.EventType()),
		Aggregate:  aggregate,
		OccurredAt: nowFunc().UTC(),
		Payload:    payload,
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env, nil
}

type correlationKey struct{}

// ContextWithCorrelation tags ctx with the id of the update being handled;
// events emitted under ctx carry it as their correlation id.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
