package events

import (
	"context"
	"strconv"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/coupon"
)

// Notifier turns booking and prize callbacks into published events.
type Notifier struct {
	publisher Publisher
}

func NewNotifier(p Publisher) *Notifier {
	if p == nil {
		p = NoopPublisher{}
	}
	return &Notifier{publisher: p}
}

var _ booking.Notifier = (*Notifier)(nil)

func (n *Notifier) ReservationCreated(ctx context.Context, r booking.Reservation) error {
	return n.emit(ctx, bookingAggregate(r.ID), BookingCreatedV1{
		BookingID:   r.ID,
		VenueID:     r.VenueID,
		UserID:      r.UserID,
		Name:        r.Name,
		Phone:       r.Phone,
		Guests:      r.Guests,
		GuestsRange: r.GuestsRange,
		Date:        r.DateString(),
		Time:        r.Time,
		CreatedAt:   r.CreatedAt,
	})
}

func (n *Notifier) ReservationStatusChanged(ctx context.Context, r booking.Reservation) error {
	return n.emit(ctx, bookingAggregate(r.ID), BookingStatusChangedV1{
		BookingID: r.ID,
		VenueID:   r.VenueID,
		Status:    string(r.Status),
		ChangedAt: r.UpdatedAt,
	})
}

func (n *Notifier) CouponIssued(ctx context.Context, user chat.User, rec coupon.Record) error {
	return n.emit(ctx, "user:"+strconv.FormatInt(user.ID, 10), CouponIssuedV1{
		Code:     rec.Code,
		UserID:   user.ID,
		Username: user.Username,
		IssuedAt: rec.IssuedAt,
	})
}

func (n *Notifier) emit(ctx context.Context, aggregate string, evt Event) error {
	env, err := NewEnvelope(aggregate, evt, WithCorrelationID(correlationFrom(ctx)))
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, env)
}

func bookingAggregate(id int64) string {
	return "booking:" + strconv.FormatInt(id, 10)
}
