package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики заказов и складского учёта.
type FulfillmentMetrics struct {
	// Операции сервиса заказов
	ordersCreated     prometheus.Counter
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// Склад
	reservations    *prometheus.CounterVec
	reservedUnits   prometheus.Counter
	releasedUnits   prometheus.Counter
	statusChanges   *prometheus.CounterVec
	restockMessages *prometheus.CounterVec

	// Ключи идемпотентности CreateOrder/RestockProduct
	idempotencyCleanupRuns *prometheus.CounterVec
	idempotencyKeysRemoved *prometheus.CounterVec

	// Публикация событий из outbox
	outboxPublishes *prometheus.CounterVec
	outboxPending   prometheus.Gauge
	outboxOldestAge prometheus.Gauge
}

// NewFulfillmentMetrics создаёт метрики в DefaultRegisterer.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return NewFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewFulfillmentMetricsWithRegisterer создаёт метрики в указанном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		ordersCreated: register(registerer, "fulfillment_orders_created_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_orders_created_total",
			Help: "Total number of orders created",
		})),
		operations: register(registerer, "fulfillment_operations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_operations_total",
			Help: "Order and catalogue operations by result",
		}, []string{"operation", "result"})),
		operationDuration: register(registerer, "fulfillment_operation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fulfillment_operation_duration_seconds",
			Help:    "Duration of order and catalogue operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"})),
		reservations: register(registerer, "fulfillment_stock_reservations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_stock_reservations_total",
			Help: "Stock reservation attempts by result",
		}, []string{"result"})),
		reservedUnits: register(registerer, "fulfillment_stock_reserved_units_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_stock_reserved_units_total",
			Help: "Total units taken from stock",
		})),
		releasedUnits: register(registerer, "fulfillment_stock_released_units_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_stock_released_units_total",
			Help: "Total units returned to stock",
		})),
		statusChanges: register(registerer, "fulfillment_product_status_changes_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_product_status_changes_total",
			Help: "Product stock status transitions by target status",
		}, []string{"status"})),
		restockMessages: register(registerer, "fulfillment_restock_messages_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_restock_messages_total",
			Help: "Restock messages consumed from Kafka by result",
		}, []string{"result"})),
		idempotencyCleanupRuns: register(registerer, "fulfillment_idempotency_cleanup_runs_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup runs by result",
		}, []string{"result"})),
		idempotencyKeysRemoved: register(registerer, "fulfillment_idempotency_keys_removed_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_idempotency_keys_removed_total",
			Help: "Idempotency keys removed by cleanup: expired by TTL or stuck in processing",
		}, []string{"reason"})),
		outboxPublishes: register(registerer, "fulfillment_outbox_publish_attempts_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_outbox_publish_attempts_total",
			Help: "Outbox publish attempts by event type and result",
		}, []string{"event_type", "result"})),
		outboxPending: register(registerer, "fulfillment_outbox_pending_records", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fulfillment_outbox_pending_records",
			Help: "Order and product events waiting in outbox",
		})),
		outboxOldestAge: register(registerer, "fulfillment_outbox_oldest_pending_age_seconds", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fulfillment_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox event in seconds",
		})),
	}
}

// register регистрирует коллектор или возвращает уже зарегистрированный того же типа.
func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *FulfillmentMetrics) RecordOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOperation фиксирует результат и длительность операции.
func (m *FulfillmentMetrics) RecordOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.operations != nil {
		m.operations.WithLabelValues(operation, result).Inc()
	}
	if m.operationDuration != nil {
		m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordReservation фиксирует попытку резервирования; units учитываются только при успехе.
func (m *FulfillmentMetrics) RecordReservation(result string, units int) {
	if m == nil {
		return
	}
	if m.reservations != nil {
		m.reservations.WithLabelValues(result).Inc()
	}
	if m.reservedUnits != nil && units > 0 {
		m.reservedUnits.Add(float64(units))
	}
}

// RecordRelease учитывает возвращённые на склад единицы.
func (m *FulfillmentMetrics) RecordRelease(units int) {
	if m == nil || m.releasedUnits == nil || units <= 0 {
		return
	}
	m.releasedUnits.Add(float64(units))
}

// RecordProductStatus учитывает смену статуса товара.
func (m *FulfillmentMetrics) RecordProductStatus(status string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordRestockMessage учитывает обработанное сообщение о пополнении.
func (m *FulfillmentMetrics) RecordRestockMessage(result string) {
	if m == nil || m.restockMessages == nil {
		return
	}
	m.restockMessages.WithLabelValues(result).Inc()
}

// RecordIdempotencyCleanup учитывает прогон очистки ключей идемпотентности.
func (m *FulfillmentMetrics) RecordIdempotencyCleanup(result string, expired, stuck int) {
	if m == nil {
		return
	}
	if m.idempotencyCleanupRuns != nil {
		m.idempotencyCleanupRuns.WithLabelValues(result).Inc()
	}
	if m.idempotencyKeysRemoved == nil {
		return
	}
	if expired > 0 {
		m.idempotencyKeysRemoved.WithLabelValues("expired").Add(float64(expired))
	}
	if stuck > 0 {
		m.idempotencyKeysRemoved.WithLabelValues("stuck").Add(float64(stuck))
	}
}

// RecordOutboxPublish учитывает попытку публикации события из outbox.
func (m *FulfillmentMetrics) RecordOutboxPublish(eventType, result string) {
	if m == nil || m.outboxPublishes == nil {
		return
	}
	m.outboxPublishes.WithLabelValues(eventType, result).Inc()
}

// RecordOutboxBacklog выставляет размер и возраст backlog outbox.
func (m *FulfillmentMetrics) RecordOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if m.outboxPending != nil {
		m.outboxPending.Set(float64(pending))
	}
	if m.outboxOldestAge != nil {
		m.outboxOldestAge.Set(oldestAge.Seconds())
	}
}
