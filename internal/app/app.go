package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/api/fulfillment/v1"
	healthcheck "github.com/vladislavdragonenkov/fulfillment/internal/health"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
	"github.com/vladislavdragonenkov/fulfillment/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает хранилище, фоновые воркеры, gRPC и HTTP-серверы и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDependencies(deps, logger)

	fulfillmentMetrics := metrics.NewFulfillmentMetrics()
	svc := newOrdersService(cfg, deps.store, fulfillmentMetrics, logger)

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, deps.store, svc, logger); err != nil {
			return err
		}
	}

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	publisher, dlqPublisher := outboxPublishers(cfg, kafkaProducer, logger)
	outboxWorker := outbox.NewWorker(deps.outboxRepo, publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithMetrics(fulfillmentMetrics),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	outboxCancel, outboxDone := startBackground(ctx, outboxWorker.Run)
	defer shutdownOutboxWorker(outboxCancel, outboxDone, logger)

	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithStuckAfter(cfg.IdempotencyStuckAfter),
		idempotency.WithMetrics(fulfillmentMetrics),
	)
	cleanupCancel, cleanupDone := startBackground(ctx, cleanupWorker.Run)
	defer shutdownOutboxWorker(cleanupCancel, cleanupDone, logger)

	restockConsumer := startRestockConsumer(ctx, cfg, kafkaProducer, svc, fulfillmentMetrics, logger)
	defer stopRestockConsumer(restockConsumer, logger)

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcMetrics.EnableHandlingTimeHistogram()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	fulfillmentService := grpcsvc.NewFulfillmentService(svc, deps.idempotencyRepo, logger.WithField("layer", "grpc"))
	fulfillmentv1.RegisterFulfillmentServiceServer(grpcServer, fulfillmentService)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(fulfillmentv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outboxRepo, cfg.OutboxMaxPending, cfg.OutboxMaxAge))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{"addr": lis.Addr().String(), "version": version.GetVersion()}).Info("grpc server listening")
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping grpc server")
		healthServer.Shutdown()
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// startBackground запускает run в отдельной горутине с собственной отменой.
func startBackground(ctx context.Context, run func(context.Context)) (context.CancelFunc, <-chan struct{}) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(runCtx)
	}()
	return cancel, done
}

// shutdownOutboxWorker отменяет фоновый воркер и ждёт его завершения не дольше shutdownTimeout.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("background worker did not stop in time")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics and health endpoints listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
