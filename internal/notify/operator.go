package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/coupon"
	"github.com/poddon/concierge/pkg/logging"
)

const maxErrorReport = 3800

// Operator tells venue staff about new bookings, status changes, prizes
// and handler failures: a chat message to the operator chat and an email
// copy to every configured address. Either channel may be absent.
type Operator struct {
	messenger  chat.Messenger
	chatID     int64
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewOperator returns a notifier. chatID 0 disables chat delivery; a nil
// email sender or an empty recipient list disables email.
func NewOperator(messenger chat.Messenger, chatID int64, email EmailSender, recipients []string, logger *logging.Logger) *Operator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Operator{
		messenger:  messenger,
		chatID:     chatID,
		email:      email,
		recipients: recipients,
		logger:     logger,
	}
}

var _ booking.Notifier = (*Operator)(nil)

// ReservationCreated posts the booking card with confirm/cancel buttons.
func (o *Operator) ReservationCreated(ctx context.Context, r booking.Reservation) error {
	text := r.OperatorText()
	return errors.Join(
		o.post(ctx, chat.Reply{Text: text, Buttons: r.OperatorButtons()}),
		o.mail(ctx, "Новая бронь #"+strconv.FormatInt(r.ID, 10), text),
	)
}

// ReservationStatusChanged is email only; the chat already got the reply to
// the button press.
func (o *Operator) ReservationStatusChanged(ctx context.Context, r booking.Reservation) error {
	subject := fmt.Sprintf("Бронь #%d: %s", r.ID, r.Status)
	body := fmt.Sprintf("Статус брони %d → %s\n%s %s, %s, %s", r.ID, r.Status, r.DateString(), r.Time, r.Name, r.Phone)
	return o.mail(ctx, subject, body)
}

// CouponIssued announces a quiz winner.
func (o *Operator) CouponIssued(ctx context.Context, user chat.User, rec coupon.Record) error {
	text := fmt.Sprintf("🎁 Выигрыш в викторине\nПользователь: %s\nКупон: %s\nПриз: Бесплатная настойка", userLine(user), rec.Code)
	return errors.Join(
		o.post(ctx, chat.Reply{Text: text}),
		o.mail(ctx, "Купон "+rec.Code, text),
	)
}

// ReportError forwards an unexpected handler failure to the operator chat.
func (o *Operator) ReportError(ctx context.Context, detail string) {
	if err := o.post(ctx, chat.Reply{Text: "⚠️ Ошибка: " + truncateRunes(detail, maxErrorReport)}); err != nil {
		o.logger.Warn("notify: error report not delivered", "error", err)
	}
}

func (o *Operator) post(ctx context.Context, reply chat.Reply) error {
	if o.chatID == 0 || o.messenger == nil {
		return nil
	}
	reply.ChatID = o.chatID
	if err := o.messenger.Send(ctx, reply); err != nil {
		return fmt.Errorf("notify: operator chat: %w", err)
	}
	return nil
}

func (o *Operator) mail(ctx context.Context, subject, body string) error {
	if o.email == nil {
		return nil
	}
	var errs []error
	for _, to := range o.recipients {
		if err := o.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
			o.logger.Error("notify: failed to send email", "error", err, "to", to)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d email(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// userLine is "@username", else "Full Name (id=N)".
func userLine(u chat.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("%s (id=%d)", u.DisplayName, u.ID)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
