package app

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}

	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}

	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}

	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("expected LockTimeout 5s, got %s", cfg.LockTimeout)
	}
	if cfg.LowStockThreshold != 10 {
		t.Errorf("expected LowStockThreshold 10, got %d", cfg.LowStockThreshold)
	}
	if !cfg.FreeShippingLimit.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected FreeShippingLimit 600, got %s", cfg.FreeShippingLimit)
	}
	if !cfg.StandardShipping.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected StandardShipping 150, got %s", cfg.StandardShipping)
	}
	if cfg.KafkaOrderTopic != "fulfillment.order.events" {
		t.Errorf("unexpected KafkaOrderTopic %s", cfg.KafkaOrderTopic)
	}
	if cfg.KafkaRestockTopic != "fulfillment.inventory.restock" {
		t.Errorf("unexpected KafkaRestockTopic %s", cfg.KafkaRestockTopic)
	}
	if cfg.OutboxPollInterval <= 0 {
		t.Error("expected OutboxPollInterval to be > 0")
	}
	if cfg.OutboxBatchSize <= 0 {
		t.Error("expected OutboxBatchSize to be > 0")
	}
	if cfg.OutboxMaxAttempts <= 0 {
		t.Error("expected OutboxMaxAttempts to be > 0")
	}
	if cfg.OutboxRetryDelay < 0 {
		t.Error("expected OutboxRetryDelay to be >= 0")
	}
	if cfg.OutboxMaxPending <= 0 {
		t.Error("expected OutboxMaxPending to be > 0")
	}
	if cfg.IdempotencyCleanupInterval <= 0 {
		t.Error("expected IdempotencyCleanupInterval to be > 0")
	}
	if cfg.IdempotencyCleanupBatchSize <= 0 {
		t.Error("expected IdempotencyCleanupBatchSize to be > 0")
	}
	if cfg.SeedDemoData {
		t.Error("expected SeedDemoData to be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.StorageDriver = StorageDriverPostgres
				c.PostgresDSN = "postgres://localhost/fulfillment"
			},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StorageDriver = StorageDriverPostgres },
			wantErr: "postgres dsn is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.StorageDriver = "sqlite" },
			wantErr: "unsupported storage driver",
		},
		{
			name:    "empty grpc addr",
			mutate:  func(c *Config) { c.GRPCAddr = "" },
			wantErr: "grpc address is required",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.LowStockThreshold = -1 },
			wantErr: "low stock threshold",
		},
		{
			name:    "negative shipping",
			mutate:  func(c *Config) { c.StandardShipping = decimal.NewFromInt(-1) },
			wantErr: "shipping amounts",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			switch {
			case tc.wantErr == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)):
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfig_BrokerList(t *testing.T) {
	testCases := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{" , ", 0},
		{"broker1:9092", 1},
		{"broker1:9092, broker2:9092,broker3:9092", 3},
	}

	for _, tc := range testCases {
		cfg := Config{KafkaBrokers: tc.raw}
		brokers := cfg.BrokerList()
		if len(brokers) != tc.want {
			t.Errorf("BrokerList(%q): expected %d brokers, got %v", tc.raw, tc.want, brokers)
		}
		for _, broker := range brokers {
			if strings.TrimSpace(broker) != broker {
				t.Errorf("broker %q is not trimmed", broker)
			}
		}
	}
}

func TestConfig_Copy(t *testing.T) {
	original := DefaultConfig()
	copied := original

	copied.GRPCAddr = ":8080"

	if original.GRPCAddr != ":50051" {
		t.Error("original config was modified")
	}

	if copied.GRPCAddr != ":8080" {
		t.Error("copy was not modified")
	}
}
