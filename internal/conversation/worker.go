package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/pkg/logging"
)

// Handler processes one decoded update.
type Handler interface {
	Dispatch(ctx context.Context, upd Update) error
}

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second
	maxReceiveBackoff   = 5 * time.Second
)

// Worker drains the update queue with a fixed pool of goroutines.
type Worker struct {
	handler Handler
	queue   Queue
	logger  *logging.Logger
	metrics *metrics.BotMetrics
	now     func() time.Time

	workers     int
	waitSeconds int
	batchSize   int
	dropBacklog bool
	startedAt   time.Time

	wg sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait, capped at 20s.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds >= 0 {
			w.waitSeconds = min(seconds, maxWaitSeconds)
		}
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll, capped at 10.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = min(size, maxReceiveBatchSize)
		}
	}
}

// WithDropBacklog discards updates received before Start instead of
// answering messages the visitor sent while the bot was down.
func WithDropBacklog(drop bool) WorkerOption {
	return func(w *Worker) { w.dropBacklog = drop }
}

func WithWorkerMetrics(m *metrics.BotMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker constructs a queue consumer around handler.
func NewWorker(handler Handler, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		handler:     handler,
		queue:       queue,
		logger:      logger,
		now:         time.Now,
		workers:     defaultWorkerCount,
		waitSeconds: defaultWaitSeconds,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the pool; goroutines exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.startedAt = w.now()
	w.logger.Info("update workers starting", "workers", w.workers, "drop_backlog", w.dropBacklog)
	for id := 1; id <= w.workers; id++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.poll(ctx, id)
		}()
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) poll(ctx context.Context, workerID int) {
	backoff := time.Second
	for ctx.Err() == nil {
		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSeconds)
		switch {
		case err == nil:
			backoff = time.Second
			for _, msg := range messages {
				w.process(ctx, msg)
			}
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			return
		default:
			w.logger.Error("failed to receive updates", "error", err, "worker_id", workerID)
			w.metrics.ObserveFailure("queue_receive")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReceiveBackoff)
		}
	}
}

// process always deletes the message: a failed update is answered with an
// apology by the dispatcher, and redelivery would repeat side effects such
// as issued coupons.
func (w *Worker) process(ctx context.Context, msg queueMessage) {
	defer w.remove(msg.ReceiptHandle)

	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode update", "error", err, "msg_id", msg.ID)
		w.metrics.ObserveFailure("queue_decode")
		return
	}
	upd := payload.Update
	if err := upd.Validate(); err != nil {
		w.logger.Error("dropping invalid update", "error", err, "update_id", payload.ID)
		w.metrics.ObserveFailure("queue_invalid")
		return
	}
	if w.dropBacklog && !upd.ReceivedAt.IsZero() && upd.ReceivedAt.Before(w.startedAt) {
		w.logger.Info("dropping update from before startup", "update_id", payload.ID, "received_at", upd.ReceivedAt)
		return
	}
	if !upd.ReceivedAt.IsZero() {
		w.metrics.ObserveLatency("queue_wait", w.now().Sub(upd.ReceivedAt).Seconds())
	}

	if err := w.handler.Dispatch(ctx, upd); err != nil {
		w.logger.Error("update failed", "error", err, "update_id", payload.ID, "kind", upd.Kind, "user_id", upd.UserID())
		return
	}
	w.logger.Debug("update processed", "update_id", payload.ID, "kind", upd.Kind)
}

func (w *Worker) remove(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete update", "error", err)
	}
}
