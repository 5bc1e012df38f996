package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const reservationSelect = `
	SELECT id, tg_user_id, name, phone, guests, guests_range, booking_date, booking_time,
	       comment, status, venue_id, created_at, updated_at
	FROM bookings`

// PostgresRepository persists reservations in the bookings table.
type PostgresRepository struct {
	db DB
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("booking: postgres db cannot be nil")
	}
	return &PostgresRepository{db: db}
}

func (p *PostgresRepository) Create(ctx context.Context, r *Reservation) error {
	err := p.db.QueryRow(ctx, `
		INSERT INTO bookings (tg_user_id, name, phone, guests, guests_range, booking_date, booking_time,
		                      comment, status, venue_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		r.UserID, r.Name, r.Phone, r.Guests, r.GuestsRange, r.DateString(), r.Time,
		r.Comment, string(r.Status), r.VenueID, r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("booking: insert reservation: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Get(ctx context.Context, id int64) (*Reservation, error) {
	r, err := scanReservation(p.db.QueryRow(ctx, reservationSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: get reservation: %w", err)
	}
	return r, nil
}

func (p *PostgresRepository) SetStatus(ctx context.Context, id int64, status Status, at time.Time) (*Reservation, error) {
	r, err := scanReservation(p.db.QueryRow(ctx, `
		UPDATE bookings SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING id, tg_user_id, name, phone, guests, guests_range, booking_date, booking_time,
		          comment, status, venue_id, created_at, updated_at`,
		string(status), at, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: set status: %w", err)
	}
	return r, nil
}

func (p *PostgresRepository) ListByDate(ctx context.Context, date time.Time) ([]Reservation, error) {
	rows, err := p.db.Query(ctx, reservationSelect+` WHERE booking_date = $1 ORDER BY booking_time ASC, id ASC`,
		date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("booking: list by date: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var (
		r      Reservation
		status string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Phone, &r.Guests, &r.GuestsRange, &r.Date, &r.Time,
		&r.Comment, &status, &r.VenueID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}
