package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DB is the slice of a pgx pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps quiz rows in quiz_users. Save locks the existing row
// before the upsert.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("quiz: postgres db cannot be nil")
	}
	return &PostgresStore{db: db}
}

const stateSelect = `
	SELECT streak, locked_until, awarded, last_played_at, current_qid
	FROM quiz_users WHERE tg_user_id = $1`

func (p *PostgresStore) Load(ctx context.Context, userID int64) (State, error) {
	s, err := scanState(p.db.QueryRow(ctx, stateSelect, userID), userID)
	if err != nil {
		return State{}, fmt.Errorf("quiz: load state: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s State) error {
	ctx, span := tracer.Start(ctx, "quiz.postgres.save")
	defer span.End()

	tx, err := p.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("quiz: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, err := scanState(tx.QueryRow(ctx, stateSelect+` FOR UPDATE`, s.UserID), s.UserID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("quiz: lock state: %w", err)
	}
	s = sticky(prev, s)

	_, err = tx.Exec(ctx, `
		INSERT INTO quiz_users (tg_user_id, streak, locked_until, awarded, last_played_at, current_qid)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tg_user_id) DO UPDATE SET
			streak = EXCLUDED.streak,
			locked_until = EXCLUDED.locked_until,
			awarded = EXCLUDED.awarded,
			last_played_at = EXCLUDED.last_played_at,
			current_qid = EXCLUDED.current_qid`,
		s.UserID, s.Streak, nullTime(s.LockedUntil), s.Awarded, nullTime(s.LastPlayedAt), s.CurrentQuestionID,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("quiz: upsert state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("quiz: commit: %w", err)
	}
	return nil
}

func scanState(row pgx.Row, userID int64) (State, error) {
	s := State{UserID: userID}
	var lockedUntil, lastPlayed *time.Time
	err := row.Scan(&s.Streak, &lockedUntil, &s.Awarded, &lastPlayed, &s.CurrentQuestionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{UserID: userID}, nil
	}
	if err != nil {
		return State{}, err
	}
	if lockedUntil != nil {
		s.LockedUntil = *lockedUntil
	}
	if lastPlayed != nil {
		s.LastPlayedAt = *lastPlayed
	}
	return s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
