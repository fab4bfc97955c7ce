package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "fulfillment.order.events"
	TopicRestock         = "fulfillment.inventory.restock"
	TopicDeadLetterQueue = "fulfillment.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — формат события заказа или каталога в топике.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// RestockMessage — команда пополнения склада от поставщика.
type RestockMessage struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Validate проверяет, что команда применима к каталогу.
func (m RestockMessage) Validate() error {
	if m.ProductID <= 0 {
		return fmt.Errorf("product_id must be positive, got %d", m.ProductID)
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", m.Quantity)
	}
	return nil
}

// ParseRestockMessage парсит и валидирует RestockMessage.
func ParseRestockMessage(message *sarama.ConsumerMessage) (RestockMessage, error) {
	var restock RestockMessage
	if err := json.Unmarshal(message.Value, &restock); err != nil {
		return RestockMessage{}, fmt.Errorf("failed to unmarshal restock message: %w", err)
	}
	if err := restock.Validate(); err != nil {
		return RestockMessage{}, err
	}
	return restock, nil
}

// ParseEnvelope парсит событие из топика заказов.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	return envelope, nil
}
