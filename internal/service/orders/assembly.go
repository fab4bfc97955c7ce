package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// LineInput — запрошенная позиция нового заказа.
type LineInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrderInput — параметры создания заказа.
type CreateOrderInput struct {
	CustomerID int64
	AddressID  int64
	Lines      []LineInput
}

func (in CreateOrderInput) validate() error {
	if len(in.Lines) == 0 {
		return domain.InvalidInputf("order must contain at least one item")
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return domain.InvalidInputf("quantity for product %d must be greater than zero", line.ProductID)
		}
		if _, dup := seen[line.ProductID]; dup {
			return domain.InvalidInputf("product %d appears more than once in the order", line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// CreateOrder собирает заказ, резервируя товар по каждой позиции.
// Любая ошибка откатывает транзакцию целиком: ни одна позиция не остаётся зарезервированной.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (view OrderView, err error) {
	started := time.Now()
	fields := log.Fields{"customer_id": in.CustomerID, "address_id": in.AddressID, "lines": len(in.Lines)}
	defer func() {
		if err == nil {
			fields["order_id"] = view.ID
		}
		s.observe("create_order", started, err, fields)
	}()

	if err := in.validate(); err != nil {
		return OrderView{}, err
	}

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		customer, err := tx.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		address, err := tx.GetAddress(ctx, in.AddressID)
		if err != nil {
			return err
		}

		// Блокировки берём заранее и в порядке возрастания id: два заказа
		// на одни и те же товары не смогут захватить их крест-накрест.
		ids := make([]int64, 0, len(in.Lines))
		for _, line := range in.Lines {
			ids = append(ids, line.ProductID)
		}
		if err := tx.LockProducts(ctx, sortedUnique(ids)...); err != nil {
			return err
		}

		now := s.now().UTC()
		products := make(map[int64]domain.Product, len(in.Lines))
		lines := make([]domain.OrderLine, 0, len(in.Lines))
		for _, item := range in.Lines {
			product, err := s.ledger.Reserve(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			products[product.ID] = product
			lines = append(lines, domain.OrderLine{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				CreatedAt: now,
			})
		}

		total := s.pricing.Total(lines)
		order, err := tx.CreateOrder(ctx, domain.Order{
			CustomerID:     customer.ID,
			AddressID:      address.ID,
			Date:           truncateToDay(now),
			TotalSum:       total,
			ShippingCharge: s.pricing.Shipping(total),
			Status:         domain.OrderStatusConfirmed,
			Lines:          lines,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}

		if err := s.enqueueOrderEvent(ctx, tx, domain.EventOrderCreated, domain.NewOrderEvent(order, now)); err != nil {
			return err
		}

		view = orderView(order, products)
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	return view, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
