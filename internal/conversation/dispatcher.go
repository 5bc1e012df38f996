package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/events"
	"github.com/poddon/concierge/internal/intent"
	"github.com/poddon/concierge/internal/keylock"
	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/internal/quiz"
	"github.com/poddon/concierge/internal/venue"
	"github.com/poddon/concierge/pkg/logging"
)

var tracer = otel.Tracer("concierge.internal.conversation")

const (
	apologyText      = "Упс, что-то пошло не так. Попробуй ещё раз чуть позже."
	menuPickerText   = "Выбери филиал:"
	venuePickerText  = "Выбери филиал для контактов:"
	menuLoadingText  = "Секунду, собираю меню…"
	menuTitleText    = "Меню — %s"
	menuMissingText  = "Для филиала «%s» пока нет картинок меню.\nПоложи файлы в `%s`."
	venuesEmptyText  = "Адреса и часы не заданы. Заполни venues_template.csv."
	venueCardText    = "%s\nАдрес: %s\nТелефон: %s\nСегодня работаем: %s"
	routeButtonText  = "Построить маршрут"
	whoamiText       = "Твой user_id: %d\nЧат id: %d"
	noHoursText      = "часы не заданы"
	missingValueText = "—"
	menuBatchSize    = 10
)

// ErrorReporter forwards unexpected failures to the operator.
type ErrorReporter interface {
	ReportError(ctx context.Context, detail string)
}

// Dispatcher routes every inbound update to the booking dialogue, the quiz
// or a static response, and delivers the replies.
type Dispatcher struct {
	messenger  chat.Messenger
	bookings   *booking.Manager
	operator   *booking.Operator
	quiz       *quiz.Engine
	classifier *intent.Classifier
	venues     *venue.Directory
	copy       venue.Copy
	menuDir    string
	version    string
	reporter   ErrorReporter
	locks      *keylock.Map[int64]
	now        func() time.Time
	logger     *logging.Logger
	metrics    *metrics.BotMetrics
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDirectory sets the branch and contacts directory.
func WithDirectory(d *venue.Directory) DispatcherOption {
	return func(disp *Dispatcher) {
		if d != nil {
			disp.venues = d
		}
	}
}

// WithCopy sets the greeting, fallback and quiz intro wording.
func WithCopy(c venue.Copy) DispatcherOption {
	return func(d *Dispatcher) { d.copy = c }
}

// WithMenuDir sets the folder holding one image folder per branch slug.
func WithMenuDir(dir string) DispatcherOption {
	return func(d *Dispatcher) { d.menuDir = dir }
}

// WithVersion is reported by /health.
func WithVersion(v string) DispatcherOption {
	return func(d *Dispatcher) { d.version = v }
}

func WithErrorReporter(r ErrorReporter) DispatcherOption {
	return func(d *Dispatcher) { d.reporter = r }
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func WithDispatcherMetrics(m *metrics.BotMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher wires the subsystems behind one entry point.
func NewDispatcher(messenger chat.Messenger, bookings *booking.Manager, operator *booking.Operator, engine *quiz.Engine, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if messenger == nil {
		panic("conversation: messenger cannot be nil")
	}
	if bookings == nil || operator == nil || engine == nil {
		panic("conversation: booking manager, operator and quiz engine are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		messenger:  messenger,
		bookings:   bookings,
		operator:   operator,
		quiz:       engine,
		classifier: intent.NewClassifier(),
		venues:     venue.NewDirectory(nil, nil),
		copy:       venue.DefaultCopy(),
		menuDir:    "menu_images",
		version:    "dev",
		locks:      keylock.New[int64](),
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ Handler = (*Dispatcher)(nil)

// Dispatch handles upd and sends the replies. Delivery failures are
// returned joined; the handling itself never fails the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, upd Update) error {
	ctx, span := tracer.Start(ctx, "conversation.dispatch", trace.WithAttributes(
		attribute.String("update.kind", string(upd.Kind)),
		attribute.Int64("chat.user_id", upd.UserID()),
	))
	defer span.End()
	ctx = events.ContextWithCorrelation(ctx, upd.ID)

	started := d.now()
	replies := d.Handle(ctx, upd)
	d.metrics.ObserveLatency(string(upd.Kind), d.now().Sub(started).Seconds())

	var errs []error
	for _, r := range replies {
		if err := d.messenger.Send(ctx, r); err != nil {
			d.logger.Warn("conversation: reply delivery failed", "chat_id", r.ChatID, "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Handle computes the replies for upd. Updates of one user are handled one
// at a time; a panic is recovered, reported and answered with an apology.
func (d *Dispatcher) Handle(ctx context.Context, upd Update) (replies []chat.Reply) {
	unlock := d.locks.Lock(upd.UserID())
	defer unlock()

	chatID := upd.ChatID()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("conversation: handler panic", "update_id", upd.ID, "panic", rec, "stack", string(debug.Stack()))
			replies = d.fail(ctx, chatID, upd.Kind, fmt.Errorf("panic: %v", rec))
		}
	}()

	switch upd.Kind {
	case KindMessage:
		return d.onMessage(ctx, *upd.Message)
	case KindCallback:
		return d.onCallback(ctx, *upd.Callback)
	}
	d.logger.Warn("conversation: unknown update kind", "kind", upd.Kind)
	return nil
}

func (d *Dispatcher) onMessage(ctx context.Context, msg chat.Message) []chat.Reply {
	text := strings.TrimSpace(msg.Text)
	if replies, ok := d.command(ctx, msg, text); ok {
		return replies
	}

	open := d.bookings.HasDraft(msg.User.ID)
	detected := d.classifier.Detect(text, open)
	d.metrics.ObserveUpdate(string(KindMessage), string(detected))

	var replies []chat.Reply
	switch detected {
	case intent.Menu:
		replies = append(replies, d.menuPicker(msg.ChatID))
	case intent.Venue:
		replies = append(replies, d.venuePicker(msg.ChatID))
	case intent.Quiz:
		replies = append(replies, d.startQuiz(ctx, msg.User, msg.ChatID)...)
	}

	booked, handled := d.bookings.Handle(ctx, booking.Turn{
		User:       msg.User,
		ChatID:     msg.ChatID,
		Text:       text,
		BookIntent: detected == intent.Book,
	})
	replies = append(replies, booked...)

	if !handled && detected == intent.None {
		replies = append(replies, chat.Reply{ChatID: msg.ChatID, Text: d.copy.Unknown})
	}
	return replies
}

func (d *Dispatcher) command(ctx context.Context, msg chat.Message, text string) ([]chat.Reply, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	name := strings.Fields(text)[0]
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	reply := func(s string) []chat.Reply { return []chat.Reply{{ChatID: msg.ChatID, Text: s}} }

	switch name {
	case "/start":
		d.metrics.ObserveUpdate("command", "start")
		return []chat.Reply{{ChatID: msg.ChatID, Text: d.copy.Greeting, Buttons: startButtons()}}, true
	case "/whoami":
		d.metrics.ObserveUpdate("command", "whoami")
		return reply(fmt.Sprintf(whoamiText, msg.User.ID, msg.ChatID)), true
	case "/health":
		d.metrics.ObserveUpdate("command", "health")
		return reply(fmt.Sprintf("OK\ngo: %s\nconcierge: %s", runtime.Version(), d.version)), true
	case "/bookings_today":
		d.metrics.ObserveUpdate("command", "bookings_today")
		text, err := d.operator.Today(ctx, msg.ChatID)
		if err != nil {
			return d.fail(ctx, msg.ChatID, KindMessage, err), true
		}
		return reply(text), true
	}
	return nil, false
}

func (d *Dispatcher) onCallback(ctx context.Context, cb chat.Callback) []chat.Reply {
	scope, rest, _ := strings.Cut(cb.Data, ":")
	d.metrics.ObserveUpdate(string(KindCallback), scope)

	switch scope {
	case "quiz":
		// the engine answers failures with its own retry line
		replies, _ := d.quiz.Answer(ctx, cb.User, cb.ChatID, cb.Data)
		return replies
	case "admin":
		return d.adminAction(ctx, cb, rest)
	case "action":
		return d.action(ctx, cb, rest)
	case "menu_branch":
		return d.menuForBranch(cb.ChatID, rest)
	case "venue_branch":
		return []chat.Reply{d.venueCard(cb.ChatID, rest)}
	}
	d.logger.Warn("conversation: unknown callback", "data", cb.Data, "user_id", cb.User.ID)
	return nil
}

func (d *Dispatcher) adminAction(ctx context.Context, cb chat.Callback, rest string) []chat.Reply {
	verb, rawID, _ := strings.Cut(rest, ":")
	var status booking.Status
	switch verb {
	case "confirm":
		status = booking.StatusConfirmed
	case "cancel":
		status = booking.StatusCanceled
	default:
		d.logger.Warn("conversation: unknown admin action", "data", cb.Data)
		return nil
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		d.logger.Warn("conversation: bad booking id in callback", "data", cb.Data)
		return nil
	}

	text, err := d.operator.Apply(ctx, cb.ChatID, id, status)
	if err != nil && !errors.Is(err, booking.ErrForbidden) {
		return d.fail(ctx, cb.ChatID, KindCallback, err)
	}
	if errors.Is(err, booking.ErrForbidden) {
		d.logger.Warn("conversation: operator action from foreign chat", "chat_id", cb.ChatID, "user_id", cb.User.ID)
	}
	return []chat.Reply{{ChatID: cb.ChatID, Text: text}}
}

func (d *Dispatcher) action(ctx context.Context, cb chat.Callback, name string) []chat.Reply {
	switch name {
	case "menu":
		return []chat.Reply{d.menuPicker(cb.ChatID)}
	case "venue":
		return []chat.Reply{d.venuePicker(cb.ChatID)}
	case "quiz":
		return d.startQuiz(ctx, cb.User, cb.ChatID)
	case "book":
		return []chat.Reply{{ChatID: cb.ChatID, Text: booking.StartPrompt}}
	}
	d.logger.Warn("conversation: unknown action", "action", name)
	return nil
}

// startQuiz prefixes a freshly asked question with the intro line.
func (d *Dispatcher) startQuiz(ctx context.Context, user chat.User, chatID int64) []chat.Reply {
	replies, err := d.quiz.Start(ctx, user, chatID)
	if err != nil || len(replies) == 0 || len(replies[0].Buttons) == 0 {
		return replies
	}
	if d.copy.QuizIntro == "" {
		return replies
	}
	return append([]chat.Reply{{ChatID: chatID, Text: d.copy.QuizIntro}}, replies...)
}

func (d *Dispatcher) menuPicker(chatID int64) chat.Reply {
	return chat.Reply{ChatID: chatID, Text: menuPickerText, Buttons: d.branchButtons("menu_branch:")}
}

func (d *Dispatcher) venuePicker(chatID int64) chat.Reply {
	return chat.Reply{ChatID: chatID, Text: venuePickerText, Buttons: d.branchButtons("venue_branch:")}
}

func (d *Dispatcher) branchButtons(prefix string) [][]chat.Button {
	branches := d.venues.Branches()
	rows := make([][]chat.Button, len(branches))
	for i, b := range branches {
		rows[i] = chat.Row(chat.Button{Text: b.Name, Payload: prefix + b.Slug})
	}
	return rows
}

// menuForBranch sends the branch's images in albums of up to ten.
func (d *Dispatcher) menuForBranch(chatID int64, slug string) []chat.Reply {
	name := d.venues.BranchName(slug)
	replies := []chat.Reply{{ChatID: chatID, Text: menuLoadingText}}

	images := venue.MenuImages(d.menuDir, slug)
	if len(images) == 0 {
		return append(replies, chat.Reply{ChatID: chatID, Text: fmt.Sprintf(menuMissingText, name, filepath.Join(d.menuDir, slug))})
	}
	replies = append(replies, chat.Reply{ChatID: chatID, Text: fmt.Sprintf(menuTitleText, name)})
	for start := 0; start < len(images); start += menuBatchSize {
		end := min(start+menuBatchSize, len(images))
		replies = append(replies, chat.Reply{ChatID: chatID, Attachments: images[start:end]})
	}
	return replies
}

func (d *Dispatcher) venueCard(chatID int64, slug string) chat.Reply {
	info, ok := d.venues.Find(slug)
	if !ok {
		return chat.Reply{ChatID: chatID, Text: venuesEmptyText}
	}
	reply := chat.Reply{ChatID: chatID, Text: fmt.Sprintf(venueCardText,
		orDefault(info.Name, d.venues.BranchName(slug)),
		orDefault(info.Address, missingValueText),
		orDefault(info.Phone, missingValueText),
		orDefault(info.TodayHours(d.now()), noHoursText),
	)}
	if url := strings.TrimSpace(info.MapsURL); url != "" {
		reply.Buttons = [][]chat.Button{chat.Row(chat.Button{Text: routeButtonText, URL: url})}
	}
	return reply
}

// fail logs and reports err to the operator and apologizes to the user.
func (d *Dispatcher) fail(ctx context.Context, chatID int64, kind UpdateKind, err error) []chat.Reply {
	d.metrics.ObserveFailure(string(kind))
	d.logger.Error("conversation: update failed", "chat_id", chatID, "error", err)
	if d.reporter != nil {
		d.reporter.ReportError(ctx, err.Error())
	}
	if chatID == 0 {
		return nil
	}
	return []chat.Reply{{ChatID: chatID, Text: apologyText}}
}

func startButtons() [][]chat.Button {
	return [][]chat.Button{
		chat.Row(chat.Button{Text: "МЕНЮ", Payload: "action:menu"}, chat.Button{Text: "КОНТАКТЫ", Payload: "action:venue"}),
		chat.Row(chat.Button{Text: "ВИКТОРИНА", Payload: "action:quiz"}, chat.Button{Text: "БРОНЬ", Payload: "action:book"}),
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
