package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/fulfillment/internal/health"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
)

// runtimeDependencies — хранилище и репозитории, выбранные по StorageDriver.
type runtimeDependencies struct {
	store           domain.Store
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore(memory.WithLockTimeout(cfg.LockTimeout))
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			store:           store,
			outboxRepo:      store.Outbox(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker:  healthcheck.NewPingChecker("storage", store),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres dsn is required for storage driver %q", cfg.StorageDriver)
		}
		var opts []postgres.Option
		if cfg.LockTimeout > 0 {
			opts = append(opts, postgres.WithLockTimeout(cfg.LockTimeout))
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return runtimeDependencies{
			store:           store,
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("storage", store),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// newOrdersService собирает складской учёт, калькулятор и сервис заказов по конфигурации.
func newOrdersService(cfg Config, store domain.Store, m *metrics.FulfillmentMetrics, logger *log.Entry) *orders.Service {
	ledger := inventory.NewLedger(
		inventory.Policy{LowStockThreshold: cfg.LowStockThreshold},
		logger,
		inventory.WithMetrics(m),
	)
	calc := pricing.NewCalculator(pricing.Config{
		FreeShippingLimit: cfg.FreeShippingLimit,
		StandardShipping:  cfg.StandardShipping,
	})
	return orders.NewService(store, ledger, calc, logger.WithField("layer", "orders"), orders.WithMetrics(m))
}

func closeDependencies(deps runtimeDependencies, logger *log.Entry) {
	if deps.closeFn == nil {
		return
	}
	if err := deps.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
