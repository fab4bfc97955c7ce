package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/app"
	"github.com/vladislavdragonenkov/fulfillment/internal/version"
)

const (
	envGRPCAddr                    = "FULFILLMENT_GRPC_ADDR"
	envMetricsAddr                 = "FULFILLMENT_METRICS_ADDR"
	envLogLevel                    = "FULFILLMENT_LOG_LEVEL"
	envStorageDriver               = "FULFILLMENT_STORAGE_DRIVER"
	envPostgresDSN                 = "FULFILLMENT_POSTGRES_DSN"
	envPostgresAutoMigrate         = "FULFILLMENT_POSTGRES_AUTO_MIGRATE"
	envLockTimeout                 = "FULFILLMENT_LOCK_TIMEOUT"
	envLowStockThreshold           = "FULFILLMENT_LOW_STOCK_THRESHOLD"
	envFreeShippingLimit           = "FULFILLMENT_FREE_SHIPPING_LIMIT"
	envStandardShipping            = "FULFILLMENT_STANDARD_SHIPPING"
	envKafkaBrokers                = "FULFILLMENT_KAFKA_BROKERS"
	envKafkaOrderTopic             = "FULFILLMENT_KAFKA_ORDER_TOPIC"
	envKafkaRestockTopic           = "FULFILLMENT_KAFKA_RESTOCK_TOPIC"
	envKafkaDLQTopic               = "FULFILLMENT_KAFKA_DLQ_TOPIC"
	envKafkaConsumerGroup          = "FULFILLMENT_KAFKA_CONSUMER_GROUP"
	envKafkaConsumerMaxRetries     = "FULFILLMENT_KAFKA_CONSUMER_MAX_RETRIES"
	envOutboxPollInterval          = "FULFILLMENT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "FULFILLMENT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "FULFILLMENT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "FULFILLMENT_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "FULFILLMENT_OUTBOX_MAX_PENDING"
	envOutboxMaxAge                = "FULFILLMENT_OUTBOX_MAX_AGE"
	envIdempotencyCleanupInterval  = "FULFILLMENT_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "FULFILLMENT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envIdempotencyStuckAfter       = "FULFILLMENT_IDEMPOTENCY_STUCK_AFTER"
	envSeedDemoData                = "FULFILLMENT_SEED_DEMO"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	readString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	readBool := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	readInt := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	readDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	readDecimal := func(key string, dst *decimal.Decimal) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseAmount(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	readString(envGRPCAddr, &cfg.GRPCAddr)
	readString(envMetricsAddr, &cfg.MetricsAddr)
	readString(envLogLevel, &cfg.LogLevel)

	readString(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	readString(envPostgresDSN, &cfg.PostgresDSN)
	readBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	readDuration(envLockTimeout, &cfg.LockTimeout, positiveDuration, "must be > 0")

	readInt(envLowStockThreshold, &cfg.LowStockThreshold, nonNegative, "must be >= 0")
	readDecimal(envFreeShippingLimit, &cfg.FreeShippingLimit)
	readDecimal(envStandardShipping, &cfg.StandardShipping)

	readString(envKafkaBrokers, &cfg.KafkaBrokers)
	readString(envKafkaOrderTopic, &cfg.KafkaOrderTopic)
	readString(envKafkaRestockTopic, &cfg.KafkaRestockTopic)
	readString(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	readString(envKafkaConsumerGroup, &cfg.KafkaConsumerGroup)
	readInt(envKafkaConsumerMaxRetries, &cfg.KafkaConsumerMaxRetries, positive, "must be > 0")

	readDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	readInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	readInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	readDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	readInt(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")
	readDuration(envOutboxMaxAge, &cfg.OutboxMaxAge, nonNegativeDuration, "must be >= 0")

	readDuration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	readInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")
	readDuration(envIdempotencyStuckAfter, &cfg.IdempotencyStuckAfter, positiveDuration, "must be > 0")

	readBool(envSeedDemoData, &cfg.SeedDemoData)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %w", err)
	}
	if value.IsNegative() {
		return decimal.Zero, errors.New("must be >= 0")
	}
	return value, nil
}

func main() {
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	if err := setupLogger(cfg.LogLevel); err != nil {
		log.WithError(err).WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka_enabled":  len(cfg.BrokerList()) > 0,
		"build":          version.String(),
	}).Info("starting fulfillment service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("fulfillment service exited with error")
	}

	log.Info("fulfillment service stopped")
}
