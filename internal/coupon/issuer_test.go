package coupon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/chat"
)

type memoryLedger struct {
	mu    sync.Mutex
	codes map[string]Record
	err   error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{codes: map[string]Record{}}
}

func (m *memoryLedger) Reserve(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.codes[rec.Code]; ok {
		return ErrCodeTaken
	}
	m.codes[rec.Code] = rec
	return nil
}

func (m *memoryLedger) ByUser(_ context.Context, userID int64) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Record{}, false, m.err
	}
	for _, rec := range m.codes {
		if rec.UserID == userID {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// fixedDraws yields the given values as big-endian uint32 words.
func fixedDraws(values ...uint32) *bytes.Reader {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(buf[4*i:], v)
	}
	return bytes.NewReader(buf)
}

var winner = chat.User{ID: 42, Username: "alice", DisplayName: "Алиса"}

func TestGenerateCodeIsSixDigits(t *testing.T) {
	code, err := GenerateCode(fixedDraws(42))
	require.NoError(t, err)
	assert.Equal(t, "000042", code)

	code, err = GenerateCode(fixedDraws(4294967295, 1999999))
	require.NoError(t, err)
	assert.Equal(t, "999999", code, "biased tail must be redrawn")
}

func TestIssueProducesDistinctCodes(t *testing.T) {
	ledger := NewFileLedger(filepath.Join(t.TempDir(), "coupons.csv"))
	issuer := NewIssuer(ledger, nil)

	const n = 50
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		user := winner
		user.ID = int64(1000 + i)
		rec, err := issuer.Issue(context.Background(), user)
		require.NoError(t, err)
		assert.Len(t, rec.Code, CodeLength)
		assert.False(t, seen[rec.Code], "duplicate code %s", rec.Code)
		seen[rec.Code] = true
	}

	records, err := ledger.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, n)
	assert.Equal(t, "Алиса", records[0].DisplayName)
}

func TestIssueRetriesTakenCodes(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.codes["000001"] = Record{Code: "000001"}
	issuer := NewIssuer(ledger, nil, WithRandom(fixedDraws(1, 1, 2)))

	rec, err := issuer.Issue(context.Background(), winner)
	require.NoError(t, err)
	assert.Equal(t, "000002", rec.Code)
	assert.Equal(t, int64(42), ledger.codes["000002"].UserID)
}

func TestIssueFallsBackToClockCode(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.codes["000007"] = Record{Code: "000007"}
	at := time.Date(2026, time.October, 14, 21, 5, 9, 0, time.UTC)
	issuer := NewIssuer(ledger, nil,
		WithRandom(fixedDraws(7, 7, 7)),
		WithMaxAttempts(3),
		WithClock(func() time.Time { return at }))

	rec, err := issuer.Issue(context.Background(), winner)
	require.NoError(t, err)
	assert.Equal(t, "210509", rec.Code)

	ledger.codes["000008"] = Record{Code: "000008"}
	issuer = NewIssuer(ledger, nil,
		WithRandom(fixedDraws(8)),
		WithMaxAttempts(1),
		WithClock(func() time.Time { return at }))
	_, err = issuer.Issue(context.Background(), chat.User{ID: 43})
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestIssueReturnsExistingCodeForSameUser(t *testing.T) {
	ledger := NewFileLedger(filepath.Join(t.TempDir(), "coupons.csv"))
	issuer := NewIssuer(ledger, nil)

	first, err := issuer.Issue(context.Background(), winner)
	require.NoError(t, err)
	again, err := issuer.Issue(context.Background(), winner)
	require.NoError(t, err)
	assert.Equal(t, first.Code, again.Code)

	other, err := issuer.Issue(context.Background(), chat.User{ID: 7})
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, other.Code)

	records, err := ledger.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rec, ok, err := ledger.ByUser(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, other.Code, rec.Code)
	_, ok, err = ledger.ByUser(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssuePropagatesLedgerFailure(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.err = errors.New("disk full")
	_, err := NewIssuer(ledger, nil).Issue(context.Background(), winner)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCodeTaken)
}

func TestFileLedgerRejectsDuplicate(t *testing.T) {
	ledger := NewFileLedger(filepath.Join(t.TempDir(), "coupons.csv"))
	rec := Record{Code: "012345", UserID: 1, IssuedAt: time.Now()}
	require.NoError(t, ledger.Reserve(context.Background(), rec))
	assert.ErrorIs(t, ledger.Reserve(context.Background(), rec), ErrCodeTaken)

	records, err := ledger.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "012345", records[0].Code, "leading zeros must survive the file")
}
