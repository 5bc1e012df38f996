package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poddon/concierge/internal/chat"
)

// Status is the operator-controlled reservation state.
type Status string

const (
	StatusNew       Status = "new"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusCanceled:
		return true
	}
	return false
}

var (
	// ErrReservationNotFound is returned when no reservation has the given id.
	ErrReservationNotFound = errors.New("booking: reservation not found")
	// ErrIncompleteDraft is returned when finalization is attempted early.
	ErrIncompleteDraft = errors.New("booking: draft is incomplete")
	// ErrForbidden is returned when a non-operator chat tries an operator action.
	ErrForbidden = errors.New("booking: operator chat required")
	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("booking: invalid status")
)

// Reservation is a persisted booking request.
type Reservation struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Guests      int       `json:"guests"`
	GuestsRange string    `json:"guests_range"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Comment     string    `json:"comment"`
	Status      Status    `json:"status"`
	VenueID     string    `json:"venue_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository persists reservations. Create assigns r.ID.
type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id int64) (*Reservation, error)
	SetStatus(ctx context.Context, id int64, status Status, at time.Time) (*Reservation, error)
	ListByDate(ctx context.Context, date time.Time) ([]Reservation, error)
}

// DateString is the ISO calendar date.
func (r Reservation) DateString() string {
	return r.Date.Format("2006-01-02")
}

// OperatorText is the operator-facing card for a new reservation.
func (r Reservation) OperatorText() string {
	var b strings.Builder
	b.WriteString("🆕 Новая бронь\n")
	fmt.Fprintf(&b, "ID: %d\n", r.ID)
	fmt.Fprintf(&b, "Дата: %s  Время: %s\n", r.DateString(), r.Time)
	fmt.Fprintf(&b, "Гостей: %s\n", r.guestsDisplay())
	fmt.Fprintf(&b, "Имя: %s\n", r.Name)
	fmt.Fprintf(&b, "Телефон: %s\n", r.Phone)
	fmt.Fprintf(&b, "Комментарий: %s\n", r.Comment)
	fmt.Fprintf(&b, "Статус: %s", r.Status)
	return b.String()
}

// OperatorButtons carries the approve/reject actions for r.
func (r Reservation) OperatorButtons() [][]chat.Button {
	id := strconv.FormatInt(r.ID, 10)
	return [][]chat.Button{chat.Row(
		chat.Button{Text: "✅ Подтвердить", Payload: "admin:confirm:" + id},
		chat.Button{Text: "❌ Отменить", Payload: "admin:cancel:" + id},
	)}
}

// ListLine renders "#id — time — name (range) — status".
func (r Reservation) ListLine() string {
	return fmt.Sprintf("#%d — %s — %s (%s) — %s", r.ID, r.Time, r.Name, r.guestsDisplay(), r.Status)
}

func (r Reservation) guestsDisplay() string {
	if r.GuestsRange != "" {
		return r.GuestsRange
	}
	return strconv.Itoa(r.Guests)
}
