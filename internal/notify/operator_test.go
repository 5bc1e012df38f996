package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/coupon"
)

type capturingMessenger struct {
	sent []chat.Reply
	err  error
}

func (m *capturingMessenger) Send(_ context.Context, r chat.Reply) error {
	m.sent = append(m.sent, r)
	return m.err
}

type mockEmailSender struct {
	sent   []EmailMessage
	failOn string
}

func (m *mockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if msg.To == m.failOn {
		return errors.New("mock email error")
	}
	m.sent = append(m.sent, msg)
	return nil
}

const opsChat int64 = -1001

func testReservation() booking.Reservation {
	return booking.Reservation{ID: 3, Name: "Алексей", Phone: "+79991234567", Guests: 4, GuestsRange: "4",
		Date: time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC), Time: "19:00", Status: booking.StatusNew}
}

func TestOperatorReservationCreated(t *testing.T) {
	messenger := &capturingMessenger{}
	email := &mockEmailSender{}
	op := NewOperator(messenger, opsChat, email, []string{"ops@example.com", "owner@example.com"}, nil)

	require.NoError(t, op.ReservationCreated(context.Background(), testReservation()))
	require.Len(t, messenger.sent, 1)
	assert.Equal(t, opsChat, messenger.sent[0].ChatID)
	assert.True(t, strings.HasPrefix(messenger.sent[0].Text, "🆕 Новая бронь\nID: 3"))
	assert.Equal(t, "admin:confirm:3", messenger.sent[0].Buttons[0][0].Payload)

	require.Len(t, email.sent, 2)
	assert.Equal(t, "Новая бронь #3", email.sent[0].Subject)
}

func TestOperatorWithoutChannelsIsSilent(t *testing.T) {
	op := NewOperator(nil, 0, nil, nil, nil)
	assert.NoError(t, op.ReservationCreated(context.Background(), testReservation()))
	assert.NoError(t, op.CouponIssued(context.Background(), chat.User{ID: 1}, coupon.Record{Code: "000001"}))
	op.ReportError(context.Background(), "boom")
}

func TestOperatorJoinsChannelFailures(t *testing.T) {
	messenger := &capturingMessenger{err: errors.New("chat down")}
	email := &mockEmailSender{failOn: "ops@example.com"}
	op := NewOperator(messenger, opsChat, email, []string{"ops@example.com"}, nil)

	err := op.ReservationCreated(context.Background(), testReservation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat down")
	assert.Contains(t, err.Error(), "mock email error")
}

func TestOperatorStatusChangedIsEmailOnly(t *testing.T) {
	messenger := &capturingMessenger{}
	email := &mockEmailSender{}
	op := NewOperator(messenger, opsChat, email, []string{"ops@example.com"}, nil)

	r := testReservation()
	r.Status = booking.StatusConfirmed
	require.NoError(t, op.ReservationStatusChanged(context.Background(), r))
	assert.Empty(t, messenger.sent)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Бронь #3: confirmed", email.sent[0].Subject)
}

func TestOperatorCouponIssued(t *testing.T) {
	tests := []struct {
		name string
		user chat.User
		line string
	}{
		{"username", chat.User{ID: 42, Username: "alice", DisplayName: "Алиса"}, "Пользователь: @alice"},
		{"display name", chat.User{ID: 42, DisplayName: "Алиса"}, "Пользователь: Алиса (id=42)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := &capturingMessenger{}
			op := NewOperator(messenger, opsChat, nil, nil, nil)
			require.NoError(t, op.CouponIssued(context.Background(), tt.user, coupon.Record{Code: "123456"}))
			require.Len(t, messenger.sent, 1)
			assert.Equal(t, "🎁 Выигрыш в викторине\n"+tt.line+"\nКупон: 123456\nПриз: Бесплатная настойка", messenger.sent[0].Text)
		})
	}
}

func TestOperatorReportErrorTruncates(t *testing.T) {
	messenger := &capturingMessenger{}
	op := NewOperator(messenger, opsChat, nil, nil, nil)
	op.ReportError(context.Background(), strings.Repeat("я", 5000))
	require.Len(t, messenger.sent, 1)
	text := messenger.sent[0].Text
	assert.True(t, strings.HasPrefix(text, "⚠️ Ошибка: "))
	assert.Equal(t, maxErrorReport, len([]rune(strings.TrimPrefix(text, "⚠️ Ошибка: "))))
}
