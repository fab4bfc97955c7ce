package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Типы агрегатов в outbox.
const (
	AggregateOrder   = "order"
	AggregateProduct = "product"
)

// EventType — тип события, публикуемого через outbox.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderLineAdded     EventType = "order.line_added"
	EventOrderLineUpdated   EventType = "order.line_updated"
	EventOrderLineRemoved   EventType = "order.line_removed"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderDeleted       EventType = "order.deleted"
	EventProductCreated     EventType = "product.created"
	EventProductStatus      EventType = "product.status_changed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// NewOutboxMessage сериализует payload в JSON и собирает сообщение outbox.
func NewOutboxMessage(aggregateType string, aggregateID int64, eventType EventType, payload any) (OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   strconv.FormatInt(aggregateID, 10),
		EventType:     string(eventType),
		Payload:       body,
	}, nil
}

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	OrderID        int64       `json:"order_id"`
	CustomerID     int64       `json:"customer_id"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	TotalSum       string      `json:"total_sum"`
	ShippingCharge string      `json:"shipping_charge"`
	ProductID      int64       `json:"product_id,omitempty"`
	Quantity       int         `json:"quantity,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// ProductEvent — полезная нагрузка событий каталога.
type ProductEvent struct {
	ProductID      int64         `json:"product_id"`
	Name           string        `json:"name"`
	Quantity       int           `json:"quantity"`
	Status         ProductStatus `json:"status"`
	PreviousStatus ProductStatus `json:"previous_status,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// NewOrderEvent заполняет общие поля события по заказу.
func NewOrderEvent(order Order, occurredAt time.Time) OrderEvent {
	return OrderEvent{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		Status:         order.Status,
		TotalSum:       order.TotalSum.StringFixed(2),
		ShippingCharge: order.ShippingCharge.StringFixed(2),
		OccurredAt:     occurredAt.UTC(),
	}
}
