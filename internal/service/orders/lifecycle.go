package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// UpdateStatus выставляет статус заказа. Переходы не ограничены: любой статус
// достижим из любого.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (view OrderView, err error) {
	started := time.Now()
	defer func() {
		s.observe("update_status", started, err, log.Fields{"order_id": orderID, "status": status})
	}()

	if !status.Valid() {
		return OrderView{}, domain.InvalidInputf("unknown order status %q", status)
	}

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		previous := order.Status
		order.Status = status
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}

		event := domain.NewOrderEvent(order, s.now())
		event.PreviousStatus = previous
		if err := s.enqueueOrderEvent(ctx, tx, domain.EventOrderStatusChanged, event); err != nil {
			return err
		}

		views, err := orderViews(ctx, tx, []domain.Order{order})
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}
	return view, nil
}

// DeleteOrder удаляет подтверждённый заказ и возвращает весь товар на склад.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) (err error) {
	started := time.Now()
	defer func() {
		s.observe("delete_order", started, err, log.Fields{"order_id": orderID})
	}()

	return s.store.InTx(ctx, func(tx domain.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusConfirmed {
			return domain.NewError(domain.ErrInvalidState,
				"order %d cannot be deleted, order status is %s", orderID, order.Status)
		}

		if err := tx.LockProducts(ctx, sortedUnique(order.ProductIDs())...); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if _, err := s.ledger.Release(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if err := tx.DeleteOrder(ctx, orderID); err != nil {
			return err
		}
		return s.enqueueOrderEvent(ctx, tx, domain.EventOrderDeleted, domain.NewOrderEvent(order, s.now()))
	})
}

// GetOrder возвращает проекцию заказа.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (OrderView, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	views, err := orderViews(ctx, s.store, []domain.Order{order})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

// ListOrders возвращает все заказы в порядке создания.
func (s *Service) ListOrders(ctx context.Context) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return orderViews(ctx, s.store, orders)
}

// ListCustomerOrders возвращает заказы клиента. Отсутствие клиента и отсутствие
// заказов одинаково дают NotFound.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID int64) (views []OrderView, err error) {
	started := time.Now()
	defer func() {
		s.observe("list_customer_orders", started, err, log.Fields{"customer_id": customerID})
	}()

	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.NotFoundf("no orders found for customer %d", customerID)
	}
	return orderViews(ctx, s.store, orders)
}
