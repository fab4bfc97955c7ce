package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	for _, brokers := range []string{"", " ", " , "} {
		producer, err := initKafkaProducer(brokers, logger)

		if err != nil {
			t.Errorf("expected no error for empty brokers %q, got %v", brokers, err)
		}

		if producer != nil {
			t.Errorf("expected nil producer for empty brokers %q", brokers)
		}
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer("invalid-broker:9999", logger)

	if err == nil {
		t.Error("expected error for invalid brokers")
	}

	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestInitKafkaProducer_BrokersWithSpaces(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer("broker1:9092, broker2:9092, broker3:9092", logger)

	if err == nil {
		t.Error("expected error for invalid brokers")
	}

	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafkaProducer_NilProducer(_ *testing.T) {
	closeKafkaProducer(nil, log.WithField("test", "kafka"))
	stopRestockConsumer(nil, log.WithField("test", "kafka"))
}

func TestOutboxPublishers_WithoutKafka(t *testing.T) {
	publisher, dlq := outboxPublishers(DefaultConfig(), nil, log.WithField("test", "kafka"))

	if _, ok := publisher.(*outbox.LogPublisher); !ok {
		t.Fatalf("expected log publisher without kafka, got %T", publisher)
	}
	if dlq != nil {
		t.Fatalf("expected no dlq publisher without kafka, got %T", dlq)
	}
}

func TestStartRestockConsumer_WithoutProducer(t *testing.T) {
	consumer := startRestockConsumer(context.Background(), DefaultConfig(), nil, nil, nil, log.WithField("test", "kafka"))
	if consumer != nil {
		t.Fatal("expected no consumer without kafka producer")
	}
}
