package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the slice of pgx the ledger needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger keeps codes in the coupons table whose primary key is the
// code itself.
type PostgresLedger struct {
	db Execer
}

var _ Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(db Execer) *PostgresLedger {
	if db == nil {
		panic("coupon: postgres db cannot be nil")
	}
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Reserve(ctx context.Context, rec Record) error {
	tag, err := l.db.Exec(ctx, `
		INSERT INTO coupons (code, tg_user_id, username, full_name, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`,
		rec.Code, rec.UserID, rec.Username, rec.DisplayName, rec.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("coupon: insert code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeTaken
	}
	return nil
}

func (l *PostgresLedger) ByUser(ctx context.Context, userID int64) (Record, bool, error) {
	var rec Record
	err := l.db.QueryRow(ctx, `
		SELECT code, tg_user_id, username, full_name, issued_at
		FROM coupons
		WHERE tg_user_id = $1
		ORDER BY issued_at
		LIMIT 1`, userID,
	).Scan(&rec.Code, &rec.UserID, &rec.Username, &rec.DisplayName, &rec.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("coupon: select by user: %w", err)
	}
	return rec, true, nil
}
