package coupon

import (
	"context"
	"strconv"
	"time"

	"github.com/poddon/concierge/internal/csvtable"
)

var ledgerColumns = []string{"code", "user_id", "username", "full_name", "issued_at"}

// FileLedger appends coupon rows to a CSV file.
type FileLedger struct {
	table *csvtable.Table
}

var _ Ledger = (*FileLedger)(nil)

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{table: csvtable.New(path, ledgerColumns)}
}

func (l *FileLedger) Reserve(_ context.Context, rec Record) error {
	return l.table.Update(func(rows []csvtable.Row) ([]csvtable.Row, error) {
		for _, row := range rows {
			if row["code"] == rec.Code {
				return nil, ErrCodeTaken
			}
		}
		return append(rows, csvtable.Row{
			"code":      rec.Code,
			"user_id":   strconv.FormatInt(rec.UserID, 10),
			"username":  rec.Username,
			"full_name": rec.DisplayName,
			"issued_at": rec.IssuedAt.Format("2006-01-02T15:04:05"),
		}), nil
	})
}

func (l *FileLedger) ByUser(ctx context.Context, userID int64) (Record, bool, error) {
	recs, err := l.Records(ctx)
	if err != nil {
		return Record{}, false, err
	}
	for _, rec := range recs {
		if rec.UserID == userID {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// Records lists the ledger in issuance order.
func (l *FileLedger) Records(_ context.Context) ([]Record, error) {
	rows, err := l.table.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(row))
	}
	return out, nil
}

func recordFromRow(row csvtable.Row) Record {
	userID, _ := strconv.ParseInt(row["user_id"], 10, 64)
	issued, _ := time.ParseInLocation("2006-01-02T15:04:05", row["issued_at"], time.Local)
	return Record{
		Code:        row["code"],
		UserID:      userID,
		Username:    row["username"],
		DisplayName: row["full_name"],
		IssuedAt:    issued,
	}
}
