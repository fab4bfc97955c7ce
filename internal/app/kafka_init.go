package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой; ошибка подключения не останавливает сервис.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// outboxPublishers выбирает, куда воркер outbox отправляет события:
// в Kafka при наличии producer, иначе в лог. DLQ без Kafka не используется.
func outboxPublishers(cfg Config, producer *kafka.Producer, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		return outbox.NewLogPublisher(logger.WithField("component", "outbox-log-publisher")), nil
	}
	return kafka.NewOutboxPublisher(producer, cfg.KafkaOrderTopic), kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)
}

// startRestockConsumer подписывается на топик пополнений. Без producer
// consumer не создаётся: ему некуда отправлять сообщения в DLQ.
func startRestockConsumer(
	ctx context.Context,
	cfg Config,
	producer *kafka.Producer,
	svc *orders.Service,
	recorder kafka.RestockRecorder,
	logger *log.Entry,
) *kafka.Consumer {
	if producer == nil || cfg.KafkaRestockTopic == "" {
		return nil
	}

	handler := kafka.NewRestockHandler(svc, recorder, logger.WithField("component", "restock-consumer"))
	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.BrokerList(),
		cfg.KafkaConsumerGroup,
		[]string{cfg.KafkaRestockTopic},
		handler,
		producer,
		cfg.KafkaConsumerMaxRetries,
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create restock consumer, continuing without it")
		return nil
	}
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Warn("failed to start restock consumer")
		_ = consumer.Stop()
		return nil
	}
	return consumer
}

// closeKafkaProducer закрывает Kafka producer если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

func stopRestockConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop restock consumer")
	}
}
