package quiz

import (
	"context"
	"strconv"
	"time"

	"github.com/poddon/concierge/internal/csvtable"
)

var userColumns = []string{"user_id", "streak", "locked_until_iso", "awarded", "last_played_at", "current_qid"}

// FileStore keeps quiz rows in a CSV table.
type FileStore struct {
	table *csvtable.Table
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{table: csvtable.New(path, userColumns)}
}

func (f *FileStore) Load(_ context.Context, userID int64) (State, error) {
	rows, err := f.table.Load()
	if err != nil {
		return State{}, err
	}
	key := strconv.FormatInt(userID, 10)
	for _, row := range rows {
		if row["user_id"] == key {
			return stateFromRow(row), nil
		}
	}
	return State{UserID: userID}, nil
}

func (f *FileStore) Save(_ context.Context, s State) error {
	return f.table.Update(func(rows []csvtable.Row) ([]csvtable.Row, error) {
		key := strconv.FormatInt(s.UserID, 10)
		for i, row := range rows {
			if row["user_id"] == key {
				rows[i] = stateToRow(sticky(stateFromRow(row), s))
				return rows, nil
			}
		}
		return append(rows, stateToRow(s)), nil
	})
}

func stateToRow(s State) csvtable.Row {
	awarded := "0"
	if s.Awarded {
		awarded = "1"
	}
	return csvtable.Row{
		"user_id":          strconv.FormatInt(s.UserID, 10),
		"streak":           strconv.Itoa(s.Streak),
		"locked_until_iso": formatTime(s.LockedUntil),
		"awarded":          awarded,
		"last_played_at":   formatTime(s.LastPlayedAt),
		"current_qid":      strconv.FormatInt(s.CurrentQuestionID, 10),
	}
}

// stateFromRow is lenient: unparseable cells read as zero.
func stateFromRow(row csvtable.Row) State {
	userID, _ := strconv.ParseInt(row["user_id"], 10, 64)
	streak, _ := strconv.Atoi(row["streak"])
	qid, _ := strconv.ParseInt(row["current_qid"], 10, 64)
	return State{
		UserID:            userID,
		Streak:            streak,
		LockedUntil:       parseTime(row["locked_until_iso"]),
		Awarded:           truthy(row["awarded"]),
		LastPlayedAt:      parseTime(row["last_played_at"]),
		CurrentQuestionID: qid,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", v, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
