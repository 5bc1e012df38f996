package quiz

import (
	"context"
	"time"
)

// Phase is where a user stands in the quiz.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
	PhaseLocked
	PhaseAwarded
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaiting:
		return "awaiting_answer"
	case PhaseLocked:
		return "locked"
	case PhaseAwarded:
		return "awarded"
	default:
		return "idle"
	}
}

// State is the durable per-user quiz row.
type State struct {
	UserID            int64     `json:"user_id"`
	Streak            int       `json:"streak"`
	LockedUntil       time.Time `json:"locked_until,omitempty"`
	Awarded           bool      `json:"awarded"`
	LastPlayedAt      time.Time `json:"last_played_at,omitempty"`
	CurrentQuestionID int64     `json:"current_qid"`
}

// Phase derives the tagged phase at now. Awarded wins over everything; an
// expired lock no longer counts.
func (s State) Phase(now time.Time) Phase {
	switch {
	case s.Awarded:
		return PhaseAwarded
	case !s.LockedUntil.IsZero() && now.Before(s.LockedUntil):
		return PhaseLocked
	case s.CurrentQuestionID != 0:
		return PhaseAwaiting
	default:
		return PhaseIdle
	}
}

// Store persists quiz rows. Load returns a zero State for unknown users.
// Save never clears Awarded once a stored row has it.
type Store interface {
	Load(ctx context.Context, userID int64) (State, error)
	Save(ctx context.Context, s State) error
}

// sticky keeps the terminal flag from ever reverting.
func sticky(prev, next State) State {
	if prev.Awarded {
		next.Awarded = true
	}
	return next
}
