package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poddon/concierge/internal/api/router"
	"github.com/poddon/concierge/internal/booking"
	appconfig "github.com/poddon/concierge/internal/config"
	"github.com/poddon/concierge/internal/conversation"
	"github.com/poddon/concierge/internal/coupon"
	"github.com/poddon/concierge/internal/events"
	"github.com/poddon/concierge/internal/http/handlers"
	httpmiddleware "github.com/poddon/concierge/internal/http/middleware"
	"github.com/poddon/concierge/internal/notify"
	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/internal/quiz"
	"github.com/poddon/concierge/internal/venue"
	"github.com/poddon/concierge/internal/webchat"
	"github.com/poddon/concierge/pkg/logging"
)

// Deps are the process-level inputs Build cannot derive from config.
type Deps struct {
	// AWS is required when the SQS queue, the DynamoDB ledger or SES is used.
	AWS *aws.Config
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
	// Now defaults to time.Now.
	Now func() time.Time
}

// App is the assembled concierge: the HTTP surface, the worker pool that
// drains the update queue, and the web chat hub both share.
type App struct {
	Handler    http.Handler
	Worker     *conversation.Worker
	Webchat    *webchat.Handler
	Dispatcher *conversation.Dispatcher

	closers []func()
}

// Close releases backend connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Build wires every component from cfg. ctx bounds background helpers such
// as the rate limiter janitor and should live as long as the process.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location()
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	clock := func() time.Time { return now().In(loc) }

	app := &App{}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	// Backends.
	var b Backends
	pool, err := BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		b.Postgres = pool
		app.closers = append(app.closers, pool.Close)
	}
	if rc := BuildRedisClient(ctx, cfg, logger, true); rc != nil {
		b.Redis = rc
		app.closers = append(app.closers, func() { _ = rc.Close() })
	}
	if cfg.CouponLedgerBackend == backendDynamo && deps.AWS != nil {
		b.Dynamo = dynamodb.NewFromConfig(*deps.AWS)
	}

	repo, err := BuildReservationRepository(cfg, b, loc)
	if err != nil {
		return fail(err)
	}
	quizStore, err := BuildQuizStore(cfg, b)
	if err != nil {
		return fail(err)
	}
	ledger, err := BuildCouponLedger(cfg, b)
	if err != nil {
		return fail(err)
	}

	// Catalogs.
	catalog, err := quiz.LoadCatalog(cfg.QuizCatalogPath, cfg.QuizStrictCatalog, logger)
	if err != nil {
		return fail(err)
	}
	directory, err := venue.LoadDirectory(cfg.VenuesCatalogPath, logger)
	if err != nil {
		return fail(err)
	}
	copyText := venue.LoadCopy(cfg.CopyFilePath, logger)

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	botMetrics := metrics.NewBotMetrics(registry)

	// Update queue and transport.
	var queue conversation.Queue
	if cfg.UseMemoryQueue {
		queue = conversation.NewMemoryQueue(0)
	} else {
		if deps.AWS == nil || cfg.UpdatesQueueURL == "" {
			return fail(fmt.Errorf("bootstrap: SQS queue requires AWS config and UPDATES_QUEUE_URL"))
		}
		queue = conversation.NewSQSQueue(sqs.NewFromConfig(*deps.AWS), cfg.UpdatesQueueURL)
	}
	publisher := conversation.NewPublisher(queue, logger)

	var transcript webchat.TranscriptStore
	if b.Redis != nil {
		transcript = webchat.NewRedisTranscript(b.Redis)
	}
	hub := webchat.NewHandler(publisher, transcript, cfg.CORSAllowedOrigins, logger)
	app.Webchat = hub

	// Notifications: operator chat and email, plus domain events.
	operatorNotify := notify.NewOperator(hub, cfg.OperatorChatID, BuildEmailSender(cfg, deps.AWS, logger), cfg.OperatorEmails, logger)
	eventPublisher, closeEvents := BuildEventPublisher(cfg, logger)
	app.closers = append(app.closers, closeEvents)
	eventNotify := events.NewNotifier(eventPublisher)
	bookingNotify := booking.Notifiers{operatorNotify, eventNotify}

	// Domain.
	finalizer := booking.NewFinalizer(repo, logger,
		booking.WithNotifier(bookingNotify),
		booking.WithVenueID(cfg.VenueID),
		booking.WithClock(clock),
		booking.WithMetrics(botMetrics),
	)
	manager := booking.NewManager(booking.NewDraftStore(), finalizer, logger, botMetrics)
	operator := booking.NewOperator(repo, cfg.OperatorChatID, bookingNotify, clock, logger, botMetrics)

	issuer := coupon.NewIssuer(ledger, logger,
		coupon.WithMaxAttempts(cfg.CouponMaxAttempts),
		coupon.WithClock(clock),
		coupon.WithMetrics(botMetrics),
	)
	engine := quiz.NewEngine(catalog, quizStore, issuer, logger,
		quiz.WithStreakTarget(cfg.QuizStreakTarget),
		quiz.WithLockDuration(cfg.QuizLockDuration),
		quiz.WithLocation(loc),
		quiz.WithClock(clock),
		quiz.WithAwardNotifier(quiz.AwardNotifiers{operatorNotify, eventNotify}),
		quiz.WithMetrics(botMetrics),
	)

	dispatcher := conversation.NewDispatcher(hub, manager, operator, engine, logger,
		conversation.WithDirectory(directory),
		conversation.WithCopy(copyText),
		conversation.WithMenuDir(cfg.MenuDir),
		conversation.WithVersion(cfg.BotVersion),
		conversation.WithErrorReporter(operatorNotify),
		conversation.WithDispatcherClock(clock),
		conversation.WithDispatcherMetrics(botMetrics),
	)
	app.Dispatcher = dispatcher
	app.Worker = conversation.NewWorker(dispatcher, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithDropBacklog(cfg.DropPendingUpdates),
		conversation.WithWorkerMetrics(botMetrics),
		conversation.WithWorkerClock(now),
	)

	burst := int(cfg.UpdatesRateLimit * 2)
	if burst < 1 {
		burst = 1
	}
	app.Handler = router.New(&router.Config{
		Logger:             logger,
		Version:            cfg.BotVersion,
		Updates:            handlers.NewUpdatesHandler(publisher, cfg.UpdatesWebhookSecret, logger),
		UpdatesLimiter:     httpmiddleware.NewRateLimiter(ctx, cfg.UpdatesRateLimit, burst),
		Webchat:            hub,
		AdminBookings:      handlers.NewAdminBookingsHandler(operator, loc, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	logger.Info("concierge assembled",
		"storage", cfg.StorageBackend,
		"quiz_state", cfg.QuizStateBackend,
		"coupon_ledger", cfg.CouponLedgerBackend,
		"memory_queue", cfg.UseMemoryQueue,
		"questions", catalog.Len(),
		"branches", len(directory.Branches()),
	)
	return app, nil
}
