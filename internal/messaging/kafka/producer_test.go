package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var restock RestockMessage
		if err := json.Unmarshal(val, &restock); err != nil {
			return err
		}
		if restock.ProductID != 42 || restock.Quantity != 5 {
			return fmt.Errorf("unexpected message %+v", restock)
		}
		return nil
	})

	err := producer.PublishEvent(context.Background(), TopicRestock, "42", RestockMessage{ProductID: 42, Quantity: 5})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(context.Background(), TopicRestock, "42", RestockMessage{ProductID: 42, Quantity: 5})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{producer: mockProducer, logger: log.WithField("component", "kafka-producer-test")}

	if err := producer.PublishEvent(context.Background(), TopicRestock, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_SendCanceledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{producer: mockProducer, logger: log.WithField("component", "kafka-producer-test")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := producer.Send(ctx, TopicOrderEvents, "k", []byte(`{}`)); err == nil {
		t.Fatal("expected error for canceled context")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewProducerInvalidBroker(t *testing.T) {
	if _, err := NewProducer([]string{"invalid-broker:9092"}); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}
