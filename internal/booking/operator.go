package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/pkg/logging"
)

const (
	forbiddenText   = "Недостаточно прав"
	notFoundText    = "Бронь не найдена (возможно уже изменена)."
	operatorOnly    = "Команда доступна только в админ-чате."
	noBookingsToday = "Сегодня броней нет."
)

// Operator performs the privileged reservation actions.
type Operator struct {
	repo     Repository
	chatID   int64
	notifier Notifier
	now      func() time.Time
	logger   *logging.Logger
	metrics  *metrics.BotMetrics
}

// NewOperator binds operator actions to the configured operator chat.
// chatID 0 disables every chat-initiated operator action.
func NewOperator(repo Repository, chatID int64, notifier Notifier, now func() time.Time, logger *logging.Logger, m *metrics.BotMetrics) *Operator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Operator{repo: repo, chatID: chatID, notifier: notifier, now: now, logger: logger, metrics: m}
}

// ChatID is the configured operator chat.
func (o *Operator) ChatID() int64 {
	return o.chatID
}

// IsOperator reports whether chatID is the operator chat.
func (o *Operator) IsOperator(chatID int64) bool {
	return o.chatID != 0 && chatID == o.chatID
}

// ChangeStatus moves reservation id to status. Callers must have
// authorized the actor already.
func (o *Operator) ChangeStatus(ctx context.Context, id int64, status Status) (*Reservation, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	r, err := o.repo.SetStatus(ctx, id, status, o.now())
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveStatusChange(string(status))
	o.logger.Info("booking: status changed", "booking_id", id, "status", status)
	if o.notifier != nil {
		if err := o.notifier.ReservationStatusChanged(ctx, *r); err != nil {
			o.logger.Warn("booking: status notification failed", "booking_id", id, "error", err)
		}
	}
	return r, nil
}

// Apply runs a chat-initiated status change and returns the reply text.
func (o *Operator) Apply(ctx context.Context, actorChatID, id int64, status Status) (string, error) {
	if !o.IsOperator(actorChatID) {
		return forbiddenText, ErrForbidden
	}
	r, err := o.ChangeStatus(ctx, id, status)
	switch {
	case errors.Is(err, ErrReservationNotFound):
		return notFoundText, nil
	case err != nil:
		return "", fmt.Errorf("booking: change status of %d: %w", id, err)
	}
	return fmt.Sprintf("Статус брони %d → %s", r.ID, r.Status), nil
}

// Today lists today's reservations sorted by time for the operator chat.
func (o *Operator) Today(ctx context.Context, actorChatID int64) (string, error) {
	if !o.IsOperator(actorChatID) {
		return operatorOnly, nil
	}
	list, err := o.ForDate(ctx, o.now())
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return noBookingsToday, nil
	}
	lines := make([]string, len(list))
	for i, r := range list {
		lines[i] = r.ListLine()
	}
	return strings.Join(lines, "\n"), nil
}

// ForDate returns the reservations on day's calendar date, ordered by time.
func (o *Operator) ForDate(ctx context.Context, day time.Time) ([]Reservation, error) {
	y, m, d := day.Date()
	list, err := o.repo.ListByDate(ctx, time.Date(y, m, d, 0, 0, 0, 0, day.Location()))
	if err != nil {
		return nil, fmt.Errorf("booking: list reservations: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Time < list[j].Time })
	return list, nil
}
