package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/http/middleware"
	"github.com/poddon/concierge/pkg/logging"
)

// AdminBookingsHandler exposes the operator's reservation actions over HTTP.
type AdminBookingsHandler struct {
	operator *booking.Operator
	loc      *time.Location
	now      func() time.Time
	logger   *logging.Logger
}

func NewAdminBookingsHandler(operator *booking.Operator, loc *time.Location, logger *logging.Logger) *AdminBookingsHandler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{operator: operator, loc: loc, now: time.Now, logger: logger}
}

// BookingResponse is one reservation in API responses.
type BookingResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Guests      int    `json:"guests"`
	GuestsRange string `json:"guests_range"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Comment     string `json:"comment,omitempty"`
	Status      string `json:"status"`
	VenueID     string `json:"venue_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toBookingResponse(r booking.Reservation) BookingResponse {
	return BookingResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Phone:       r.Phone,
		Guests:      r.Guests,
		GuestsRange: r.GuestsRange,
		Date:        r.DateString(),
		Time:        r.Time,
		Comment:     r.Comment,
		Status:      string(r.Status),
		VenueID:     r.VenueID,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

// List handles GET /admin/bookings?date=YYYY-MM-DD (default today).
func (h *AdminBookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	day := h.now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	list, err := h.operator.ForDate(r.Context(), day)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err, "date", day.Format("2006-01-02"))
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	out := make([]BookingResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toBookingResponse(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day.Format("2006-01-02"), "bookings": out})
}

// UpdateStatus handles POST /admin/bookings/{id}/status with {"status": "..."}.
func (h *AdminBookingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.operator.ChangeStatus(r.Context(), id, booking.Status(body.Status))
	switch {
	case errors.Is(err, booking.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "status must be new, confirmed or canceled")
		return
	case errors.Is(err, booking.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
		return
	case err != nil:
		h.logger.Error("failed to update booking status", "error", err, "booking_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update booking")
		return
	}

	actor := ""
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	h.logger.Info("booking status changed via admin api", "booking_id", id, "status", res.Status, "actor", actor)
	writeJSON(w, http.StatusOK, toBookingResponse(*res))
}
