package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// LockTimeout ограничивает ожидание блокировки строки в обоих хранилищах.
	LockTimeout time.Duration

	LowStockThreshold int
	FreeShippingLimit decimal.Decimal
	StandardShipping  decimal.Decimal

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает Kafka.
	KafkaBrokers            string
	KafkaOrderTopic         string
	KafkaRestockTopic       string
	KafkaDLQTopic           string
	KafkaConsumerGroup      string
	KafkaConsumerMaxRetries int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending и OutboxMaxAge — пороги, после которых health отдаёт degraded.
	OutboxMaxPending int
	OutboxMaxAge     time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
	// IdempotencyStuckAfter — через сколько ключ в PROCESSING считается брошенным.
	IdempotencyStuckAfter time.Duration

	// SeedDemoData заводит демо-клиента и каталог в пустом хранилище.
	SeedDemoData bool
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		LogLevel:    "info",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		LockTimeout:         5 * time.Second,

		LowStockThreshold: domain.DefaultLowStockThreshold,
		FreeShippingLimit: decimal.NewFromInt(600),
		StandardShipping:  decimal.NewFromInt(150),

		KafkaOrderTopic:         kafka.TopicOrderEvents,
		KafkaRestockTopic:       kafka.TopicRestock,
		KafkaDLQTopic:           kafka.TopicDeadLetterQueue,
		KafkaConsumerGroup:      "fulfillment-service",
		KafkaConsumerMaxRetries: 3,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,
		OutboxMaxPending:   1000,
		OutboxMaxAge:       5 * time.Minute,

		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		IdempotencyStuckAfter:       5 * time.Minute,
	}
}

// Validate проверяет значения, без которых сервис не стартует.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres dsn is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	switch {
	case c.GRPCAddr == "":
		return fmt.Errorf("grpc address is required")
	case c.LowStockThreshold < 0:
		return fmt.Errorf("low stock threshold must be non-negative, got %d", c.LowStockThreshold)
	case c.FreeShippingLimit.IsNegative() || c.StandardShipping.IsNegative():
		return fmt.Errorf("shipping amounts must be non-negative")
	}
	return nil
}

// BrokerList разбирает KafkaBrokers, отбрасывая пустые элементы.
func (c Config) BrokerList() []string {
	return splitBrokers(c.KafkaBrokers)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
