package quiz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/coupon"
	"github.com/poddon/concierge/internal/keylock"
	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/pkg/logging"
)

var tracer = otel.Tracer("concierge.internal.quiz")

const (
	awardedText   = "Вы уже выиграли приз 🎉 Повторная игра недоступна."
	lockedText    = "Сегодня без игры 😔 Попробуйте снова после %s."
	emptyText     = "Вопросы викторины пока не добавлены."
	closedText    = "Этот вопрос уже закрыт. Давай новый!"
	correctText   = "Верно! 👏 Осталось правильных подряд: %d"
	prizeText     = "🔥 Три подряд! Ваш приз — бесплатная настойка.\nКод купона: %s\nПокажите его бармену при заказе."
	noRepeatText  = "🔥 Три подряд! Приз — бесплатная настойка.\nКупон уже получали ранее — повторно не выдаётся."
	wrongText     = "Чуть-чуть мимо 😬 Попробуйте снова после %s."
	retryText     = "Что-то пошло не так. Попробуем ещё раз."
	unlockLayout  = "02.01 15:04"
	callbackScope = "quiz"
)

// ErrBadCallback is returned for payloads that are not quiz:<id>:<letter>.
var ErrBadCallback = errors.New("quiz: malformed callback")

// CouponIssuer hands out prize codes.
type CouponIssuer interface {
	Issue(ctx context.Context, user chat.User) (coupon.Record, error)
}

// AwardNotifier hears about issued prizes.
type AwardNotifier interface {
	CouponIssued(ctx context.Context, user chat.User, rec coupon.Record) error
}

// AwardNotifiers fans out to every member and joins their errors.
type AwardNotifiers []AwardNotifier

func (n AwardNotifiers) CouponIssued(ctx context.Context, user chat.User, rec coupon.Record) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.CouponIssued(ctx, user, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Engine drives the per-user quiz state machine.
type Engine struct {
	catalog      *Catalog
	store        Store
	active       *ActiveQuestions
	coupons      CouponIssuer
	notifier     AwardNotifier
	locks        *keylock.Map[int64]
	streakTarget int
	lockFor      time.Duration
	loc          *time.Location
	now          func() time.Time
	intn         func(int) int
	logger       *logging.Logger
	metrics      *metrics.BotMetrics
}

// Option customizes an Engine.
type Option func(*Engine)

func WithStreakTarget(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.streakTarget = n
		}
	}
}

func WithLockDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockFor = d
		}
	}
}

// WithLocation sets the zone unlock times are shown in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPicker replaces the random question choice.
func WithPicker(intn func(int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

func WithAwardNotifier(n AwardNotifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithActiveQuestions(a *ActiveQuestions) Option {
	return func(e *Engine) {
		if a != nil {
			e.active = a
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine wires the quiz to its catalog, state store and coupon issuer.
func NewEngine(catalog *Catalog, store Store, coupons CouponIssuer, logger *logging.Logger, opts ...Option) *Engine {
	if catalog == nil {
		catalog = NewCatalog(nil, nil, false)
	}
	if store == nil {
		panic("quiz: store cannot be nil")
	}
	if coupons == nil {
		panic("quiz: coupon issuer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		catalog:      catalog,
		store:        store,
		active:       NewActiveQuestions(),
		coupons:      coupons,
		locks:        keylock.New[int64](),
		streakTarget: 3,
		lockFor:      24 * time.Hour,
		loc:          time.Local,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins an attempt for user: a question, or the reason there is none.
func (e *Engine) Start(ctx context.Context, user chat.User, chatID int64) ([]chat.Reply, error) {
	unlock := e.locks.Lock(user.ID)
	defer unlock()

	replies, err := e.start(ctx, user.ID, chatID)
	if err != nil {
		e.logger.Error("quiz: start failed", "user_id", user.ID, "error", err)
		return []chat.Reply{{ChatID: chatID, Text: retryText}}, err
	}
	return replies, nil
}

func (e *Engine) start(ctx context.Context, userID, chatID int64) ([]chat.Reply, error) {
	st, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	switch st.Phase(now) {
	case PhaseAwarded:
		return []chat.Reply{{ChatID: chatID, Text: awardedText}}, nil
	case PhaseLocked:
		return []chat.Reply{{ChatID: chatID, Text: fmt.Sprintf(lockedText, e.unlockTime(st.LockedUntil))}}, nil
	}
	// an expired lock is cleared on the way in
	st.LockedUntil = time.Time{}

	q, err := e.catalog.Pick(e.intn)
	if errors.Is(err, ErrCatalogEmpty) {
		return []chat.Reply{{ChatID: chatID, Text: emptyText}}, nil
	}
	if err != nil {
		return nil, err
	}

	st.CurrentQuestionID = q.ID
	st.LastPlayedAt = now
	if err := e.store.Save(ctx, st); err != nil {
		return nil, err
	}
	e.active.Register(q.ID, q.Correct)

	buttons := make([][]chat.Button, len(q.Options))
	for i, o := range q.Options {
		buttons[i] = chat.Row(chat.Button{Text: o.Label(), Payload: Payload(q.ID, o.Letter)})
	}
	return []chat.Reply{{ChatID: chatID, Text: q.Text, Buttons: buttons}}, nil
}

// Answer resolves a quiz:<id>:<letter> callback. Failures are logged and
// answered with a generic retry line; the error is returned for the caller's
// bookkeeping only.
func (e *Engine) Answer(ctx context.Context, user chat.User, chatID int64, data string) ([]chat.Reply, error) {
	ctx, span := tracer.Start(ctx, "quiz.answer", trace.WithAttributes(attribute.Int64("chat.user_id", user.ID)))
	defer span.End()

	unlock := e.locks.Lock(user.ID)
	defer unlock()

	replies, err := e.answer(ctx, user, chatID, data)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveQuizAnswer("error")
		e.logger.Error("quiz: answer failed", "user_id", user.ID, "data", data, "error", err)
		return []chat.Reply{{ChatID: chatID, Text: retryText}}, err
	}
	return replies, nil
}

func (e *Engine) answer(ctx context.Context, user chat.User, chatID int64, data string) ([]chat.Reply, error) {
	qid, letter, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}
	st, err := e.store.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	switch st.Phase(now) {
	case PhaseAwarded:
		e.metrics.ObserveQuizAnswer("rejected")
		return []chat.Reply{{ChatID: chatID, Text: awardedText}}, nil
	case PhaseLocked:
		e.metrics.ObserveQuizAnswer("rejected")
		return []chat.Reply{{ChatID: chatID, Text: fmt.Sprintf(lockedText, e.unlockTime(st.LockedUntil))}}, nil
	}

	correct, ok := e.active.Lookup(qid)
	if !ok {
		e.metrics.ObserveQuizAnswer("closed")
		next, err := e.start(ctx, user.ID, chatID)
		if err != nil {
			return nil, err
		}
		return append([]chat.Reply{{ChatID: chatID, Text: closedText}}, next...), nil
	}

	if letter != correct {
		st.Streak = 0
		st.CurrentQuestionID = 0
		st.LockedUntil = now.Add(e.lockFor)
		if err := e.store.Save(ctx, st); err != nil {
			return nil, err
		}
		e.active.Close(qid)
		e.metrics.ObserveQuizAnswer("wrong")
		e.logger.Info("quiz: wrong answer, locked", "user_id", user.ID, "question_id", qid)
		return []chat.Reply{{ChatID: chatID, Text: fmt.Sprintf(wrongText, e.unlockTime(st.LockedUntil))}}, nil
	}

	st.Streak++
	st.CurrentQuestionID = 0
	if st.Streak < e.streakTarget {
		if err := e.store.Save(ctx, st); err != nil {
			return nil, err
		}
		e.active.Close(qid)
		e.metrics.ObserveQuizAnswer("correct")
		next, err := e.start(ctx, user.ID, chatID)
		if err != nil {
			return nil, err
		}
		remaining := e.streakTarget - st.Streak
		return append([]chat.Reply{{ChatID: chatID, Text: fmt.Sprintf(correctText, remaining)}}, next...), nil
	}

	return e.award(ctx, user, chatID, qid, st)
}

// award closes the loop at the streak target. The coupon row is in the
// ledger before the state is saved and before the code is shown.
func (e *Engine) award(ctx context.Context, user chat.User, chatID, qid int64, st State) ([]chat.Reply, error) {
	var (
		rec    coupon.Record
		issued bool
	)
	if !st.Awarded {
		var err error
		rec, err = e.coupons.Issue(ctx, user)
		if err != nil {
			return nil, err
		}
		issued = true
		st.Awarded = true
	}
	st.Streak = 0
	if err := e.store.Save(ctx, st); err != nil {
		return nil, err
	}
	e.active.Close(qid)
	e.metrics.ObserveQuizAnswer("awarded")

	if !issued {
		return []chat.Reply{{ChatID: chatID, Text: noRepeatText}}, nil
	}
	e.logger.Info("quiz: prize awarded", "user_id", user.ID)
	if e.notifier != nil {
		if err := e.notifier.CouponIssued(ctx, user, rec); err != nil {
			e.logger.Warn("quiz: coupon notification failed", "user_id", user.ID, "error", err)
		}
	}
	return []chat.Reply{{ChatID: chatID, Text: fmt.Sprintf(prizeText, rec.Code)}}, nil
}

func (e *Engine) unlockTime(t time.Time) string {
	return t.In(e.loc).Format(unlockLayout)
}

// Payload renders the answer button data.
func Payload(qid int64, letter string) string {
	return callbackScope + ":" + strconv.FormatInt(qid, 10) + ":" + letter
}

// ParsePayload splits quiz:<id>:<letter>.
func ParsePayload(data string) (int64, string, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackScope {
		return 0, "", fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	qid, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	return qid, strings.ToLower(parts[2]), nil
}
