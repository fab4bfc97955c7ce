// Package orders реализует согласованность заказов и склада: создание заказа
// с резервированием, изменение позиций, жизненный цикл и операции каталога.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
)

// Recorder принимает метрики операций. Реализуется пакетом metrics.
type Recorder interface {
	RecordOperation(operation, result string, duration time.Duration)
	RecordOrderCreated()
}

// Service — фасад над хранилищем, складским учётом и расчётом цен.
type Service struct {
	store   domain.Store
	ledger  *inventory.Ledger
	pricing pricing.Calculator
	metrics Recorder
	logger  *log.Entry
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает сбор метрик.
func WithMetrics(m Recorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService собирает сервис заказов.
func NewService(store domain.Store, ledger *inventory.Ledger, calc pricing.Calculator, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	s := &Service{
		store:   store,
		ledger:  ledger,
		pricing: calc,
		logger:  logger.WithField("component", "orders-service"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe пишет метрику операции и логирует результат на нужном уровне.
func (s *Service) observe(operation string, started time.Time, err error, fields log.Fields) {
	result := domain.KindName(err)
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, result, time.Since(started))
	}

	entry := s.logger.WithField("operation", operation).WithFields(fields)
	switch {
	case err == nil:
		entry.Info("operation completed")
	case domain.IsBusiness(err):
		entry.WithField("reason", result).Warn(err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		entry.WithError(err).Warn("operation aborted")
	default:
		entry.WithError(err).Error("operation failed")
	}
}

// loadMutableOrder блокирует заказ и проверяет владельца и статус, именно в этом порядке.
func (s *Service) loadMutableOrder(ctx context.Context, tx domain.Tx, orderID int64, customerEmail string) (domain.Order, error) {
	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	customer, err := tx.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load owner of order %d: %w", orderID, err)
	}
	if !customer.OwnedBy(customerEmail) {
		return domain.Order{}, domain.NewError(domain.ErrForbidden,
			"customer '%s' is not allowed to modify order %d", customerEmail, orderID)
	}

	if !order.Mutable() {
		return domain.Order{}, domain.NewError(domain.ErrInvalidState,
			"order %d cannot be modified, order status is %s", orderID, order.Status)
	}
	return order, nil
}

// refreshTotal пересчитывает только сумму заказа; стоимость доставки остаётся
// той, что была рассчитана при создании.
func (s *Service) refreshTotal(order *domain.Order) {
	order.TotalSum = s.pricing.Total(order.Lines)
}

func (s *Service) enqueueOrderEvent(ctx context.Context, tx domain.Tx, eventType domain.EventType, event domain.OrderEvent) error {
	msg, err := domain.NewOutboxMessage(domain.AggregateOrder, event.OrderID, eventType, event)
	if err != nil {
		return err
	}
	if err := tx.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

func sortedUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
