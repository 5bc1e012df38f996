package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/booking"
	"github.com/poddon/concierge/internal/chat"
	appconfig "github.com/poddon/concierge/internal/config"
	"github.com/poddon/concierge/internal/conversation"
	"github.com/poddon/concierge/internal/coupon"
	"github.com/poddon/concierge/internal/events"
	"github.com/poddon/concierge/internal/quiz"
	"github.com/poddon/concierge/pkg/logging"
)

func fileConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	dir := t.TempDir()
	return &appconfig.Config{
		DataDir:             dir,
		Timezone:            "Europe/Moscow",
		VenueID:             "poddon",
		BotVersion:          "test",
		WorkerCount:         1,
		StorageBackend:      "file",
		QuizStateBackend:    "file",
		CouponLedgerBackend: "file",
		UseMemoryQueue:      true,
		QuizCatalogPath:     dir + "/quiz.csv",
		VenuesCatalogPath:   dir + "/venues.csv",
		CopyFilePath:        dir + "/bot_copy.json",
		MenuDir:             dir + "/menu",
		QuizStreakTarget:    3,
		QuizLockDuration:    24 * time.Hour,
		CouponMaxAttempts:   100,
		UpdatesRateLimit:    5,
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, logging.New("error"), Deps{})
	require.Error(t, err)
}

func TestBuildFileBackends(t *testing.T) {
	cfg := fileConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, cfg, logging.New("error"), Deps{})
	require.NoError(t, err)
	defer app.Close()

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	replies := app.Dispatcher.Handle(ctx, conversation.Update{
		Kind:    conversation.KindMessage,
		Message: &chat.Message{User: chat.User{ID: 5}, ChatID: 5, Text: "/start"},
	})
	require.NotEmpty(t, replies)
	assert.True(t, strings.HasPrefix(replies[0].Text, "Привет"))
}

func TestBuildRejectsSQSWithoutAWS(t *testing.T) {
	cfg := fileConfig(t)
	cfg.UseMemoryQueue = false
	cfg.UpdatesQueueURL = "http://localhost:4566/000000000000/updates"

	_, err := Build(context.Background(), cfg, logging.New("error"), Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQS")
}

func TestBuildPostgresPoolRequiresURL(t *testing.T) {
	cfg := fileConfig(t)
	pool, err := BuildPostgresPool(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, pool)

	cfg.StorageBackend = "postgres"
	_, err = BuildPostgresPool(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestStoreSelection(t *testing.T) {
	cfg := fileConfig(t)

	repo, err := BuildReservationRepository(cfg, Backends{}, time.UTC)
	require.NoError(t, err)
	assert.IsType(t, &booking.FileRepository{}, repo)

	store, err := BuildQuizStore(cfg, Backends{})
	require.NoError(t, err)
	assert.IsType(t, &quiz.FileStore{}, store)

	ledger, err := BuildCouponLedger(cfg, Backends{})
	require.NoError(t, err)
	assert.IsType(t, &coupon.FileLedger{}, ledger)

	cfg.StorageBackend, cfg.QuizStateBackend, cfg.CouponLedgerBackend = "postgres", "redis", "dynamodb"
	_, err = BuildReservationRepository(cfg, Backends{}, time.UTC)
	assert.Error(t, err)
	_, err = BuildQuizStore(cfg, Backends{})
	assert.Error(t, err)
	_, err = BuildCouponLedger(cfg, Backends{})
	assert.Error(t, err)

	cfg.StorageBackend = "sqlite"
	_, err = BuildReservationRepository(cfg, Backends{}, time.UTC)
	assert.ErrorContains(t, err, "STORAGE_BACKEND")
}

func TestBuildRedisQuizStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := fileConfig(t)
	cfg.RedisAddr = mr.Addr()
	cfg.QuizStateBackend = "redis"

	client := BuildRedisClient(context.Background(), cfg, nil, true)
	require.NotNil(t, client)
	defer client.Close()

	store, err := BuildQuizStore(cfg, Backends{Redis: client})
	require.NoError(t, err)
	assert.IsType(t, &quiz.RedisStore{}, store)

	cfg.RedisAddr = ""
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, nil, true))
}

func TestBuildNotifiersUnconfigured(t *testing.T) {
	cfg := fileConfig(t)
	logger := logging.New("error")

	assert.Nil(t, BuildEmailSender(cfg, nil, logger))

	pub, closeFn := BuildEventPublisher(cfg, logger)
	assert.IsType(t, events.NoopPublisher{}, pub)
	closeFn()
}
