// Package idempotency обслуживает ключи идемпотентности CreateOrder и RestockProduct.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	defaultStuckAfter       = 5 * time.Minute
)

// Recorder принимает итоги прогона очистки (см. metrics.FulfillmentMetrics).
type Recorder interface {
	RecordIdempotencyCleanup(result string, expired, stuck int)
}

// CleanupOptions задает параметры воркера очистки idempotency ключей.
type CleanupOptions struct {
	Logger     *log.Entry
	Interval   time.Duration
	BatchSize  int
	StuckAfter time.Duration
	Metrics    Recorder
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между cleanup-циклами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задает размер batch для одного удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithStuckAfter задает, сколько ключ может провисеть в PROCESSING.
// Такой ключ остаётся после падения процесса посреди CreateOrder или RestockProduct
// и до истечения TTL отвечал бы клиенту Aborted на каждый повтор.
func WithStuckAfter(d time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.StuckAfter = d
	}
}

// WithMetrics подключает учёт прогонов.
func WithMetrics(recorder Recorder) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Metrics = recorder
	}
}

// SweepResult — итог одного прогона.
type SweepResult struct {
	Expired int
	Stuck   int
}

// CleanupWorker периодически удаляет просроченные ключи и освобождает брошенные.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	stuckAfter time.Duration
	metrics    Recorder
	now        func() time.Time
}

// NewCleanupWorker создает воркер очистки idempotency ключей.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:   defaultCleanupInterval,
		BatchSize:  defaultCleanupBatchSize,
		StuckAfter: defaultStuckAfter,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = defaultStuckAfter
	}

	return &CleanupWorker{
		repo:       repo,
		logger:     logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
		stuckAfter: opts.StuckAfter,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	w.cleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	res, err := w.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.record("error", res)
		w.logger.WithError(err).WithFields(log.Fields{
			"expired": res.Expired,
			"stuck":   res.Stuck,
		}).Warn("idempotency cleanup run failed")
		return
	}

	w.record("ok", res)
	if res.Stuck > 0 {
		w.logger.WithFields(log.Fields{
			"stuck":       res.Stuck,
			"stuck_after": w.stuckAfter.String(),
		}).Warn("released idempotency keys left in processing by interrupted requests")
	}
	if res.Expired > 0 {
		w.logger.WithField("expired", res.Expired).Info("idempotency cleanup completed")
	}
}

func (w *CleanupWorker) record(result string, res SweepResult) {
	if w.metrics != nil {
		w.metrics.RecordIdempotencyCleanup(result, res.Expired, res.Stuck)
	}
}

// Sweep выполняет один прогон: удаляет ключи с истёкшим TTL, затем
// освобождает ключи, застрявшие в PROCESSING дольше stuckAfter.
func (w *CleanupWorker) Sweep(ctx context.Context) (SweepResult, error) {
	now := w.now().UTC()

	var res SweepResult
	var err error
	res.Expired, err = w.DeleteExpired(ctx, now)
	if err != nil {
		return res, err
	}
	res.Stuck, err = w.ReleaseStuck(ctx, now.Add(-w.stuckAfter))
	return res, err
}

// DeleteExpired удаляет все записи с ttl <= before порциями batchSize.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now().UTC()
	}
	return w.drain(ctx, func(ctx context.Context) (int, error) {
		return w.repo.DeleteExpired(ctx, before, w.batchSize)
	})
}

// ReleaseStuck освобождает ключи PROCESSING, не менявшиеся с before.
func (w *CleanupWorker) ReleaseStuck(ctx context.Context, before time.Time) (int, error) {
	return w.drain(ctx, func(ctx context.Context) (int, error) {
		return w.repo.ReleaseStuck(ctx, before, w.batchSize)
	})
}

// drain повторяет step, пока очередная порция не окажется неполной.
func (w *CleanupWorker) drain(ctx context.Context, step func(context.Context) (int, error)) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := step(ctx)
		if err != nil {
			return total, err
		}
		total += n

		if n < w.batchSize {
			return total, nil
		}
	}
}
