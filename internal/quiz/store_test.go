package quiz

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/csvtable"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	locked := time.Date(2026, time.October, 15, 20, 0, 0, 0, time.UTC)

	st, err := store.Load(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, State{UserID: 42}, st)

	require.NoError(t, store.Save(ctx, State{UserID: 42, Streak: 2, CurrentQuestionID: 5, LockedUntil: locked}))
	st, err = store.Load(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Streak)
	assert.Equal(t, int64(5), st.CurrentQuestionID)
	assert.True(t, st.LockedUntil.Equal(locked))

	require.NoError(t, store.Save(ctx, State{UserID: 42, Awarded: true}))
	require.NoError(t, store.Save(ctx, State{UserID: 42, Streak: 1}))
	st, err = store.Load(ctx, 42)
	require.NoError(t, err)
	assert.True(t, st.Awarded, "awarded must never revert")
	assert.Equal(t, 1, st.Streak)

	other, err := store.Load(ctx, 43)
	require.NoError(t, err)
	assert.False(t, other.Awarded)
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "quiz_users.csv")))
}

func TestRedisStore(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	exerciseStore(t, NewRedisStore(client))

	raw, err := client.Get(context.Background(), "concierge:quiz:user:42").Result()
	require.NoError(t, err)
	assert.Contains(t, raw, `"awarded":true`)
}

func TestFileStoreReadsLegacyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz_users.csv")
	store := NewFileStore(path)
	require.NoError(t, store.table.Update(func(_ []csvtable.Row) ([]csvtable.Row, error) {
		return []csvtable.Row{{"user_id": "7", "streak": "1", "locked_until_iso": "2026-10-15T20:00:00", "awarded": "0", "current_qid": "12"}}, nil
	}))
	st, err := store.Load(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Streak)
	assert.Equal(t, int64(12), st.CurrentQuestionID)
	assert.Equal(t, 20, st.LockedUntil.Hour())
}

func TestPostgresStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	ctx := context.Background()
	played := time.Date(2026, time.October, 14, 20, 0, 0, 0, time.UTC)
	cols := []string{"streak", "locked_until", "awarded", "last_played_at", "current_qid"}

	mock.ExpectQuery("SELECT streak, locked_until, awarded").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)
	st, err := store.Load(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, State{UserID: 42}, st)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(0, nil, true, &played, int64(0)))
	mock.ExpectExec("INSERT INTO quiz_users").
		WithArgs(int64(42), 1, pgxmock.AnyArg(), true, pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, store.Save(ctx, State{UserID: 42, Streak: 1, CurrentQuestionID: 5, LastPlayedAt: played}))

	require.NoError(t, mock.ExpectationsWereMet())
}
