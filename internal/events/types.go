package events

import "time"

type BookingCreatedV1 struct {
	BookingID   int64     `json:"booking_id"`
	VenueID     string    `json:"venue_id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Guests      int       `json:"guests"`
	GuestsRange string    `json:"guests_range"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	CreatedAt   time.Time `json:"created_at"`
}

func (BookingCreatedV1) EventType() string { return "booking.created" }

type BookingStatusChangedV1 struct {
	BookingID int64     `json:"booking_id"`
	VenueID   string    `json:"venue_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

func (BookingStatusChangedV1) EventType() string { return "booking.status_changed" }

type CouponIssuedV1 struct {
	Code     string    `json:"code"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

func (CouponIssuedV1) EventType() string { return "coupon.issued" }
