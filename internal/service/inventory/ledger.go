package inventory

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Policy задаёт правила вывода статуса товара из остатка.
type Policy struct {
	LowStockThreshold int
}

// DefaultPolicy возвращает порог низкого запаса по умолчанию.
func DefaultPolicy() Policy {
	return Policy{LowStockThreshold: domain.DefaultLowStockThreshold}
}

// Recorder принимает складские метрики. Реализуется пакетом metrics.
type Recorder interface {
	RecordReservation(result string, units int)
	RecordRelease(units int)
	RecordProductStatus(status string)
}

// Ledger — единственное место, где меняется остаток товара.
// Все методы работают внутри переданной транзакции и держат блокировку строки товара.
type Ledger struct {
	policy  Policy
	logger  *log.Entry
	metrics Recorder
	now     func() time.Time
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithMetrics подключает сбор метрик.
func WithMetrics(m Recorder) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger создаёт складской учёт с заданной политикой.
func NewLedger(policy Policy, logger *log.Entry, opts ...Option) *Ledger {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	l := &Ledger{
		policy: policy,
		logger: logger.WithField("component", "inventory-ledger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StatusFor выводит статус товара для остатка по политике учёта.
func (l *Ledger) StatusFor(quantity int) domain.ProductStatus {
	return domain.StockStatusFor(quantity, l.policy.LowStockThreshold)
}

// Reserve списывает quantity единиц товара.
// Нулевой остаток даёт ErrOutOfStock, нехватка — ErrInsufficientStock.
func (l *Ledger) Reserve(ctx context.Context, tx domain.Tx, productID int64, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, domain.InvalidInputf("quantity must be greater than zero")
	}

	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	if product.Quantity <= 0 {
		l.recordReservation("out_of_stock", 0)
		return domain.Product{}, domain.NewError(domain.ErrOutOfStock, "product '%s' is out of stock", product.Name)
	}
	if quantity > product.Quantity {
		l.recordReservation("insufficient_stock", 0)
		return domain.Product{}, domain.NewError(domain.ErrInsufficientStock,
			"not enough stock for product '%s': requested %d, available %d", product.Name, quantity, product.Quantity)
	}

	updated, err := l.apply(ctx, tx, product, product.Quantity-quantity)
	if err != nil {
		return domain.Product{}, err
	}
	l.recordReservation("ok", quantity)
	return updated, nil
}

// Release возвращает quantity единиц товара на склад.
func (l *Ledger) Release(ctx context.Context, tx domain.Tx, productID int64, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, domain.InvalidInputf("quantity must be greater than zero")
	}

	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	updated, err := l.apply(ctx, tx, product, product.Quantity+quantity)
	if err != nil {
		return domain.Product{}, err
	}
	if l.metrics != nil {
		l.metrics.RecordRelease(quantity)
	}
	return updated, nil
}

// Adjust выставляет абсолютный остаток (инвентаризация).
func (l *Ledger) Adjust(ctx context.Context, tx domain.Tx, productID int64, quantity int) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, domain.InvalidInputf("stock quantity must be non-negative")
	}

	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return l.apply(ctx, tx, product, quantity)
}

func (l *Ledger) apply(ctx context.Context, tx domain.Tx, product domain.Product, quantity int) (domain.Product, error) {
	previous := product.Status
	product.Quantity = quantity
	if next := l.StatusFor(quantity); next != product.Status {
		product.Status = next
	}
	product.UpdatedAt = l.now().UTC()

	if err := tx.SaveProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("save product %d: %w", product.ID, err)
	}

	if product.Status != previous {
		msg, err := domain.NewOutboxMessage(domain.AggregateProduct, product.ID, domain.EventProductStatus, domain.ProductEvent{
			ProductID:      product.ID,
			Name:           product.Name,
			Quantity:       product.Quantity,
			Status:         product.Status,
			PreviousStatus: previous,
			OccurredAt:     product.UpdatedAt,
		})
		if err != nil {
			return domain.Product{}, err
		}
		if err := tx.Enqueue(ctx, msg); err != nil {
			return domain.Product{}, fmt.Errorf("enqueue product status event: %w", err)
		}
		if l.metrics != nil {
			l.metrics.RecordProductStatus(string(product.Status))
		}
		l.logger.WithFields(log.Fields{
			"product_id": product.ID,
			"from":       previous,
			"to":         product.Status,
			"quantity":   product.Quantity,
		}).Info("product stock status changed")
	}

	return product, nil
}

func (l *Ledger) recordReservation(result string, units int) {
	if l.metrics != nil {
		l.metrics.RecordReservation(result, units)
	}
}
