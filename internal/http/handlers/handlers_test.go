package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/conversation"
)

type stubEnqueuer struct {
	updates []conversation.Update
	err     error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, upd conversation.Update) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.updates = append(s.updates, upd)
	return "upd-1", nil
}

func postUpdate(h http.Handler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/updates", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpdatesHandler(t *testing.T) {
	queue := &stubEnqueuer{}
	h := NewUpdatesHandler(queue, "s3cret", nil)

	msg := `{"kind":"message","message":{"user":{"id":42,"username":"alice"},"chat_id":42,"text":"привет"}}`
	rec := postUpdate(h, msg, "s3cret")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "upd-1", resp["id"])
	require.Len(t, queue.updates, 1)
	assert.Equal(t, "alice", queue.updates[0].Message.User.Username)

	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, msg, "").Code)
	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, msg, "wrong").Code)
	assert.Equal(t, http.StatusBadRequest, postUpdate(h, `{"kind":"callback","callback":{"chat_id":1}}`, "s3cret").Code)
	assert.Equal(t, http.StatusBadRequest, postUpdate(h, `not json`, "s3cret").Code)

	queue.err = errors.New("sqs down")
	assert.Equal(t, http.StatusServiceUnavailable, postUpdate(h, msg, "s3cret").Code)
}

var (
	msk    = time.FixedZone("MSK", 3*60*60)
	refNow = time.Date(2026, time.October, 14, 15, 0, 0, 0, msk)
)

func newBookingsHandler(t *testing.T) (*AdminBookingsHandler, booking.Repository) {
	t.Helper()
	repo := booking.NewFileRepository(filepath.Join(t.TempDir(), "bookings.csv"), msk)
	clock := func() time.Time { return refNow }
	op := booking.NewOperator(repo, -1, nil, clock, nil, nil)
	h := NewAdminBookingsHandler(op, msk, nil)
	h.now = clock
	for _, at := range []string{"21:00", "18:30"} {
		require.NoError(t, repo.Create(context.Background(), &booking.Reservation{
			UserID: 1, Name: "Гость", Phone: "+79990000000", Guests: 2, GuestsRange: "2",
			Date: refNow, Time: at, Status: booking.StatusNew, CreatedAt: refNow, UpdatedAt: refNow,
		}))
	}
	return h, repo
}

func TestAdminBookingsList(t *testing.T) {
	h, _ := newBookingsHandler(t)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Date     string            `json:"date"`
		Bookings []BookingResponse `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-14", resp.Date)
	require.Len(t, resp.Bookings, 2)
	assert.Equal(t, "18:30", resp.Bookings[0].Time)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings?date=2026-10-15", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Bookings)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings?date=15.10", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func statusRequest(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/bookings/"+id+"/status", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminBookingsUpdateStatus(t *testing.T) {
	h, repo := newBookingsHandler(t)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, statusRequest("1", `{"status":"confirmed"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)

	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, stored.Status)

	cases := []struct {
		id, body string
		status   int
	}{
		{"1", `{"status":"archived"}`, http.StatusBadRequest},
		{"99", `{"status":"canceled"}`, http.StatusNotFound},
		{"abc", `{"status":"canceled"}`, http.StatusBadRequest},
		{"1", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest(tc.id, tc.body))
		assert.Equal(t, tc.status, rec.Code, "id=%s body=%s", tc.id, tc.body)
	}
}
