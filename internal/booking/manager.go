package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/extract"
	"github.com/poddon/concierge/internal/keylock"
	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/pkg/logging"
)

// StartPrompt invites the user to describe the booking in free form.
const StartPrompt = "Окей, забронируем. Расскажи когда, во сколько и сколько вас будет человек (можно диапазон)."

const promptExamples = "Можно свободно — напр.: «в субботу к 18, нас трое» или «3–5 человек» или «+79991234567 Алексей»."

// Turn is one inbound message as seen by the dialogue.
type Turn struct {
	User   chat.User
	ChatID int64
	Text   string
	// BookIntent is true when the classifier picked the booking intent.
	BookIntent bool
}

// Manager runs the slot-filling dialogue for every user.
type Manager struct {
	drafts    *DraftStore
	finalizer *Finalizer
	locks     *keylock.Map[int64]
	now       func() time.Time
	logger    *logging.Logger
	metrics   *metrics.BotMetrics
}

// NewManager wires the dialogue to a finalizer.
func NewManager(drafts *DraftStore, finalizer *Finalizer, logger *logging.Logger, m *metrics.BotMetrics) *Manager {
	if drafts == nil {
		drafts = NewDraftStore()
	}
	if finalizer == nil {
		panic("booking: finalizer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		drafts:    drafts,
		finalizer: finalizer,
		locks:     keylock.New[int64](),
		now:       finalizer.now,
		logger:    logger,
		metrics:   m,
	}
}

// HasDraft reports whether userID has an open booking dialogue.
func (m *Manager) HasDraft(userID int64) bool {
	_, ok := m.drafts.Get(userID)
	return ok
}

// Handle extracts slots from the turn and decides the next utterance.
// handled is false when the message carried no booking signal and no
// dialogue is open; the caller then falls back to other responses.
func (m *Manager) Handle(ctx context.Context, turn Turn) (replies []chat.Reply, handled bool) {
	unlock := m.locks.Lock(turn.User.ID)
	defer unlock()

	fields := extract.Parse(turn.Text, m.now())
	draft, open := m.drafts.Get(turn.User.ID)
	if !turn.BookIntent && !open && fields.Empty() {
		return nil, false
	}

	draft.Merge(fields)
	if draft.Name == "" {
		draft.Name = displayName(turn.User)
	}
	m.drafts.Put(turn.User.ID, draft)

	if missing := draft.Missing(); len(missing) > 0 {
		m.metrics.ObserveBookingPrompt()
		return []chat.Reply{{ChatID: turn.ChatID, Text: Prompt(draft, missing)}}, true
	}

	_, reply, err := m.finalizer.Finalize(ctx, turn.User, turn.ChatID, draft)
	if errors.Is(err, ErrIncompleteDraft) {
		return []chat.Reply{reply}, true
	}
	m.drafts.Delete(turn.User.ID)
	return []chat.Reply{reply}, true
}

// Prompt renders the "known so far / still missing" message.
func Prompt(d Draft, missing []Slot) string {
	labels := make([]string, len(missing))
	for i, s := range missing {
		labels[i] = s.Label()
	}
	return fmt.Sprintf("Понял: %s.\nДопиши недостающее: %s.\n%s", d.Summary(), strings.Join(labels, ", "), promptExamples)
}
