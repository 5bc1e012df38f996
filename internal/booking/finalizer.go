package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/pkg/logging"
)

var tracer = otel.Tracer("concierge.internal.booking")

const (
	retryPrompt   = "Давай ещё раз: когда, во сколько, сколько вас (можно диапазон), и телефон с именем."
	failurePrompt = "Не получилось сохранить бронь. Попробуй ещё раз чуть позже."
)

// Notifier is told about reservation lifecycle changes.
type Notifier interface {
	ReservationCreated(ctx context.Context, r Reservation) error
	ReservationStatusChanged(ctx context.Context, r Reservation) error
}

// Notifiers fans out to every member and joins their errors.
type Notifiers []Notifier

func (n Notifiers) ReservationCreated(ctx context.Context, r Reservation) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.ReservationCreated(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n Notifiers) ReservationStatusChanged(ctx context.Context, r Reservation) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.ReservationStatusChanged(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finalizer turns a complete draft into a persisted reservation.
type Finalizer struct {
	repo     Repository
	notifier Notifier
	venueID  string
	now      func() time.Time
	logger   *logging.Logger
	metrics  *metrics.BotMetrics
}

// FinalizerOption customizes a Finalizer.
type FinalizerOption func(*Finalizer)

// WithNotifier sets who hears about new reservations.
func WithNotifier(n Notifier) FinalizerOption {
	return func(f *Finalizer) { f.notifier = n }
}

// WithVenueID stamps reservations with the venue identifier.
func WithVenueID(id string) FinalizerOption {
	return func(f *Finalizer) { f.venueID = id }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) FinalizerOption {
	return func(f *Finalizer) {
		if now != nil {
			f.now = now
		}
	}
}

// WithMetrics records finalization outcomes.
func WithMetrics(m *metrics.BotMetrics) FinalizerOption {
	return func(f *Finalizer) { f.metrics = m }
}

// NewFinalizer builds a Finalizer over repo.
func NewFinalizer(repo Repository, logger *logging.Logger, opts ...FinalizerOption) *Finalizer {
	if repo == nil {
		panic("booking: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	f := &Finalizer{
		repo:    repo,
		venueID: "1",
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize persists d as a new reservation and returns the requester's
// confirmation. An incomplete draft yields ErrIncompleteDraft together with
// a retry prompt. Operator notification is best-effort.
func (f *Finalizer) Finalize(ctx context.Context, user chat.User, chatID int64, d Draft) (*Reservation, chat.Reply, error) {
	ctx, span := tracer.Start(ctx, "booking.finalize", trace.WithAttributes(attribute.Int64("chat.user_id", user.ID)))
	defer span.End()

	_, guestsMax := d.guestBounds()
	if d.Date.IsZero() || d.Time == "" || guestsMax == 0 || d.Phone == "" {
		f.metrics.ObserveBooking("incomplete")
		return nil, chat.Reply{ChatID: chatID, Text: retryPrompt}, ErrIncompleteDraft
	}

	name := d.Name
	if name == "" {
		name = displayName(user)
	}
	now := f.now()
	r := &Reservation{
		UserID:      user.ID,
		Name:        name,
		Phone:       d.Phone,
		Guests:      guestsMax,
		GuestsRange: d.GuestsRange(),
		Date:        d.Date,
		Time:        d.Time,
		Status:      StatusNew,
		VenueID:     f.venueID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.repo.Create(ctx, r); err != nil {
		span.RecordError(err)
		f.metrics.ObserveBooking("failed")
		f.logger.Error("booking: persist reservation failed", "user_id", user.ID, "error", err)
		return nil, chat.Reply{ChatID: chatID, Text: failurePrompt}, fmt.Errorf("booking: create reservation: %w", err)
	}
	span.SetAttributes(attribute.Int64("booking.id", r.ID))
	f.metrics.ObserveBooking("created")
	f.logger.Info("booking: reservation created", "booking_id", r.ID, "user_id", user.ID, "date", r.DateString(), "time", r.Time)

	if f.notifier != nil {
		if err := f.notifier.ReservationCreated(ctx, *r); err != nil {
			f.logger.Warn("booking: operator notification failed", "booking_id", r.ID, "error", err)
		}
	}

	confirmation := fmt.Sprintf("Записал: %s в %s, %s\nИмя: %s, телефон: %s.\nМы свяжемся для подтверждения.",
		r.Date.Format("02.01.2006"), r.Time, d.GuestsLabel(), r.Name, r.Phone)
	return r, chat.Reply{ChatID: chatID, Text: confirmation}, nil
}

func displayName(u chat.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return DefaultGuestName
}
