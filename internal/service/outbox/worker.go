package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

// Результаты публикации для метрик.
const (
	ResultSent       = "sent"
	ResultRetryError = "retry_error"
	ResultDeadLetter = "dead_lettered"
	ResultDeferred   = "deferred"
)

// Recorder принимает метрики публикации (см. metrics.FulfillmentMetrics).
type Recorder interface {
	RecordOutboxPublish(eventType, result string)
	RecordOutboxBacklog(pending int, oldestAge time.Duration)
}

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	Metrics        Recorder
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithDLQPublisher задаёт publisher для отправки в DLQ после исчерпания retry.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) {
		opts.DLQPublisher = publisher
	}
}

// WithMetrics подключает метрики публикации и backlog.
func WithMetrics(recorder Recorder) Option {
	return func(opts *WorkerOptions) {
		opts.Metrics = recorder
	}
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// WithMaxAttempts задаёт число попыток публикации перед failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.RetryBaseDelay = delay
	}
}

// Worker публикует события заказов и товаров из outbox в брокер.
//
// Событие, не опубликованное за maxAttempts попыток, уходит в DLQ и помечается
// failed. Если не удалась и запись в DLQ, событие остаётся pending, а батч
// прерывается: следующий цикл начнёт с него же, и ни одно событие не теряется.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	dlqPublisher   domain.OutboxPublisher
	metrics        Recorder
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	now            func() time.Time
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Worker{
		repo:           repo,
		publisher:      publisher,
		dlqPublisher:   opts.DLQPublisher,
		metrics:        opts.Metrics,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		now:            time.Now,
	}
}

// Run запускает периодический polling outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// BatchResult — итог одного polling-цикла.
type BatchResult struct {
	Sent         int
	DeadLettered int
	// Deferred — события, оставленные pending до следующего цикла.
	Deferred int
}

// ProcessOnce выполняет один polling-цикл.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}

	w.refreshBacklog(ctx)

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return result
	}

	for i, event := range events {
		if ctx.Err() != nil {
			return result
		}

		publishErr := w.publishWithRetry(ctx, event)
		if publishErr == nil {
			result.Sent++
			w.record(event, ResultSent)
			if err := w.repo.MarkSent(ctx, event.ID); err != nil {
				w.eventLogger(event).WithError(err).Warn("failed to mark outbox as sent")
			}
			continue
		}
		if ctx.Err() != nil {
			return result
		}

		w.eventLogger(event).WithError(publishErr).Error("outbox publish failed after retries")
		if dlqErr := w.deadLetter(ctx, event, publishErr); dlqErr != nil {
			result.Deferred = len(events) - i
			for _, rest := range events[i:] {
				w.record(rest, ResultDeferred)
			}
			w.eventLogger(event).WithError(dlqErr).WithField("deferred", result.Deferred).
				Warn("dead letter publish failed, keeping events pending")
			break
		}

		result.DeadLettered++
		w.record(event, ResultDeadLetter)
		if markErr := w.repo.MarkFailed(ctx, event.ID); markErr != nil {
			w.eventLogger(event).WithError(markErr).Warn("failed to mark outbox as failed")
		}
	}

	w.refreshBacklog(ctx)
	if len(events) > 0 {
		w.logger.WithFields(log.Fields{
			"sent":          result.Sent,
			"dead_lettered": result.DeadLettered,
			"deferred":      result.Deferred,
		}).Debug("outbox batch processed")
	}
	return result
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.publisher.Publish(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err
		w.record(event, ResultRetryError)

		if attempt >= w.maxAttempts {
			break
		}

		delay := w.retryBackoff(attempt)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", w.maxAttempts, lastErr)
}

func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return w.retryBaseDelay
	}

	const maxDuration = time.Duration(1<<63 - 1)
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDuration/2 {
			return maxDuration
		}
		delay *= 2
	}
	return delay
}

// DeadLetter — тело сообщения в DLQ; его разбирает cmd/dlq-reprocess.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

func (w *Worker) deadLetter(ctx context.Context, event domain.OutboxMessage, publishErr error) error {
	if w.dlqPublisher == nil {
		return nil
	}

	payload, err := json.Marshal(DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        json.RawMessage(event.Payload),
		PublishError:   publishErr.Error(),
		DLQPublishedAt: w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dlqEvent := event
	dlqEvent.Payload = payload
	if err := w.dlqPublisher.Publish(ctx, dlqEvent); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = max(w.now().Sub(stats.OldestPendingAt), 0)
	}
	w.metrics.RecordOutboxBacklog(stats.PendingCount, age)
}

func (w *Worker) record(event domain.OutboxMessage, result string) {
	if w.metrics != nil {
		w.metrics.RecordOutboxPublish(event.EventType, result)
	}
}

// eventLogger подставляет order_id или product_id в зависимости от агрегата.
func (w *Worker) eventLogger(event domain.OutboxMessage) *log.Entry {
	fields := log.Fields{"outbox_id": event.ID, "event_type": event.EventType}
	switch event.AggregateType {
	case domain.AggregateOrder:
		fields["order_id"] = event.AggregateID
	case domain.AggregateProduct:
		fields["product_id"] = event.AggregateID
	default:
		fields["aggregate_id"] = event.AggregateID
	}
	return w.logger.WithFields(fields)
}
