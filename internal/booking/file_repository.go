package booking

import (
	"context"
	"strconv"
	"time"

	"github.com/poddon/concierge/internal/csvtable"
)

var reservationColumns = []string{
	"id", "tg_user_id", "name", "phone", "guests", "guests_range", "date", "time",
	"comment", "status", "venue_id", "created_at", "updated_at",
}

const timestampLayout = "2006-01-02T15:04:05"

// FileRepository stores reservations in a CSV table. Ids are max+1,
// allocated under the table lock.
type FileRepository struct {
	table *csvtable.Table
	loc   *time.Location
}

var _ Repository = (*FileRepository)(nil)

// NewFileRepository opens (or lazily creates) the bookings table at path.
// Dates are interpreted in loc.
func NewFileRepository(path string, loc *time.Location) *FileRepository {
	if loc == nil {
		loc = time.Local
	}
	return &FileRepository{table: csvtable.New(path, reservationColumns), loc: loc}
}

func (f *FileRepository) Create(_ context.Context, r *Reservation) error {
	return f.table.Update(func(rows []csvtable.Row) ([]csvtable.Row, error) {
		var maxID int64
		for _, row := range rows {
			if id, err := strconv.ParseInt(row["id"], 10, 64); err == nil && id > maxID {
				maxID = id
			}
		}
		r.ID = maxID + 1
		return append(rows, f.toRow(r)), nil
	})
}

func (f *FileRepository) Get(_ context.Context, id int64) (*Reservation, error) {
	rows, err := f.table.Load()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row["id"] == strconv.FormatInt(id, 10) {
			r := f.fromRow(row)
			return &r, nil
		}
	}
	return nil, ErrReservationNotFound
}

func (f *FileRepository) SetStatus(_ context.Context, id int64, status Status, at time.Time) (*Reservation, error) {
	var updated *Reservation
	err := f.table.Update(func(rows []csvtable.Row) ([]csvtable.Row, error) {
		key := strconv.FormatInt(id, 10)
		for _, row := range rows {
			if row["id"] != key {
				continue
			}
			row["status"] = string(status)
			row["updated_at"] = at.Format(timestampLayout)
			r := f.fromRow(row)
			updated = &r
			return rows, nil
		}
		return nil, ErrReservationNotFound
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (f *FileRepository) ListByDate(_ context.Context, date time.Time) ([]Reservation, error) {
	rows, err := f.table.Load()
	if err != nil {
		return nil, err
	}
	want := date.Format("2006-01-02")
	var out []Reservation
	for _, row := range rows {
		if row["date"] == want {
			out = append(out, f.fromRow(row))
		}
	}
	return out, nil
}

func (f *FileRepository) toRow(r *Reservation) csvtable.Row {
	return csvtable.Row{
		"id":           strconv.FormatInt(r.ID, 10),
		"tg_user_id":   strconv.FormatInt(r.UserID, 10),
		"name":         r.Name,
		"phone":        r.Phone,
		"guests":       strconv.Itoa(r.Guests),
		"guests_range": r.GuestsRange,
		"date":         r.DateString(),
		"time":         r.Time,
		"comment":      r.Comment,
		"status":       string(r.Status),
		"venue_id":     r.VenueID,
		"created_at":   r.CreatedAt.Format(timestampLayout),
		"updated_at":   r.UpdatedAt.Format(timestampLayout),
	}
}

func (f *FileRepository) fromRow(row csvtable.Row) Reservation {
	id, _ := strconv.ParseInt(row["id"], 10, 64)
	userID, _ := strconv.ParseInt(row["tg_user_id"], 10, 64)
	guests, _ := strconv.Atoi(row["guests"])
	date, _ := time.ParseInLocation("2006-01-02", row["date"], f.loc)
	created, _ := time.ParseInLocation(timestampLayout, row["created_at"], f.loc)
	updated, _ := time.ParseInLocation(timestampLayout, row["updated_at"], f.loc)
	return Reservation{
		ID:          id,
		UserID:      userID,
		Name:        row["name"],
		Phone:       row["phone"],
		Guests:      guests,
		GuestsRange: row["guests_range"],
		Date:        date,
		Time:        row["time"],
		Comment:     row["comment"],
		Status:      Status(row["status"]),
		VenueID:     row["venue_id"],
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
}
