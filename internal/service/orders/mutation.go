package orders

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// AddLineInput — добавление товара в существующий заказ.
type AddLineInput struct {
	OrderID       int64
	ProductID     int64
	Quantity      int
	CustomerEmail string
}

// UpdateLineInput — изменение количества; позиция ищется по имени товара.
type UpdateLineInput struct {
	OrderID       int64
	ProductName   string
	Quantity      int
	CustomerEmail string
}

// DeleteLineInput — удаление позиции по товару.
type DeleteLineInput struct {
	OrderID       int64
	ProductID     int64
	CustomerEmail string
}

// AddLine добавляет товар в заказ со статусом CONFIRMED.
func (s *Service) AddLine(ctx context.Context, in AddLineInput) (view LineView, err error) {
	started := time.Now()
	defer func() {
		s.observe("add_line", started, err, log.Fields{
			"order_id":       in.OrderID,
			"product_id":     in.ProductID,
			"requested":      in.Quantity,
			"customer_email": in.CustomerEmail,
		})
	}()

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		order, err := s.loadMutableOrder(ctx, tx, in.OrderID, in.CustomerEmail)
		if err != nil {
			return err
		}
		if _, exists := order.LineForProduct(in.ProductID); exists {
			return domain.NewError(domain.ErrInvalidState, "product %d already exists in order %d", in.ProductID, in.OrderID)
		}

		product, err := s.ledger.Reserve(ctx, tx, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}

		line, err := tx.InsertLine(ctx, domain.OrderLine{
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  in.Quantity,
			UnitPrice: product.Price,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}

		order.Lines = append(order.Lines, line)
		s.refreshTotal(&order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}

		event := domain.NewOrderEvent(order, s.now())
		event.ProductID, event.Quantity = product.ID, line.Quantity
		if err := s.enqueueOrderEvent(ctx, tx, domain.EventOrderLineAdded, event); err != nil {
			return err
		}

		view = lineView(line, product.Name)
		return nil
	})
	if err != nil {
		return LineView{}, err
	}
	return view, nil
}

// UpdateLineQuantity меняет количество по позиции и двигает остаток на разницу.
func (s *Service) UpdateLineQuantity(ctx context.Context, in UpdateLineInput) (view LineView, err error) {
	started := time.Now()
	defer func() {
		s.observe("update_line", started, err, log.Fields{
			"order_id":       in.OrderID,
			"product_name":   in.ProductName,
			"requested":      in.Quantity,
			"customer_email": in.CustomerEmail,
		})
	}()

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		order, err := s.loadMutableOrder(ctx, tx, in.OrderID, in.CustomerEmail)
		if err != nil {
			return err
		}

		line, product, err := findLineByProductName(ctx, tx, order, in.ProductName)
		if err != nil {
			return err
		}

		if in.Quantity <= 0 {
			return domain.InvalidInputf("quantity must be greater than zero")
		}
		if in.Quantity == line.Quantity {
			return domain.InvalidInputf("quantity of '%s' is already %d, you must update the quantity", product.Name, line.Quantity)
		}

		product, err = tx.GetProductForUpdate(ctx, line.ProductID)
		if err != nil {
			return err
		}

		delta := in.Quantity - line.Quantity
		if delta > 0 {
			if delta > product.Quantity {
				return domain.NewError(domain.ErrInsufficientStock,
					"not enough stock for product '%s': requested %d more, available %d", product.Name, delta, product.Quantity)
			}
			product, err = s.ledger.Reserve(ctx, tx, product.ID, delta)
		} else {
			product, err = s.ledger.Release(ctx, tx, product.ID, -delta)
		}
		if err != nil {
			return err
		}

		line.Quantity = in.Quantity
		if err := tx.UpdateLine(ctx, line); err != nil {
			return err
		}
		order.ReplaceLine(line)
		s.refreshTotal(&order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}

		event := domain.NewOrderEvent(order, s.now())
		event.ProductID, event.Quantity = product.ID, line.Quantity
		if err := s.enqueueOrderEvent(ctx, tx, domain.EventOrderLineUpdated, event); err != nil {
			return err
		}

		view = lineView(line, product.Name)
		return nil
	})
	if err != nil {
		return LineView{}, err
	}
	return view, nil
}

// DeleteLine удаляет позицию и возвращает её количество на склад.
func (s *Service) DeleteLine(ctx context.Context, in DeleteLineInput) (view LineView, err error) {
	started := time.Now()
	defer func() {
		s.observe("delete_line", started, err, log.Fields{
			"order_id":       in.OrderID,
			"product_id":     in.ProductID,
			"customer_email": in.CustomerEmail,
		})
	}()

	err = s.store.InTx(ctx, func(tx domain.Tx) error {
		order, err := s.loadMutableOrder(ctx, tx, in.OrderID, in.CustomerEmail)
		if err != nil {
			return err
		}

		line, ok := order.LineForProduct(in.ProductID)
		if !ok {
			return domain.NotFoundf("product %d not found in order %d", in.ProductID, in.OrderID)
		}

		product, err := s.ledger.Release(ctx, tx, line.ProductID, line.Quantity)
		if err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, line); err != nil {
			return err
		}

		order.RemoveLine(line.ID)
		s.refreshTotal(&order)
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}

		event := domain.NewOrderEvent(order, s.now())
		event.ProductID, event.Quantity = product.ID, line.Quantity
		if err := s.enqueueOrderEvent(ctx, tx, domain.EventOrderLineRemoved, event); err != nil {
			return err
		}

		view = lineView(line, product.Name)
		return nil
	})
	if err != nil {
		return LineView{}, err
	}
	return view, nil
}

// ListOrderLines возвращает позиции заказа его владельцу.
func (s *Service) ListOrderLines(ctx context.Context, orderID int64, customerEmail string) (views []LineView, err error) {
	started := time.Now()
	defer func() {
		s.observe("list_order_lines", started, err, log.Fields{"order_id": orderID, "customer_email": customerEmail})
	}()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.OwnedBy(customerEmail) {
		return nil, domain.NewError(domain.ErrForbidden, "customer '%s' is not allowed to view order %d", customerEmail, orderID)
	}

	products, err := s.store.ProductsByIDs(ctx, sortedUnique(order.ProductIDs()))
	if err != nil {
		return nil, err
	}
	return orderView(order, products).Lines, nil
}

func findLineByProductName(ctx context.Context, tx domain.Tx, order domain.Order, name string) (domain.OrderLine, domain.Product, error) {
	products, err := tx.ProductsByIDs(ctx, order.ProductIDs())
	if err != nil {
		return domain.OrderLine{}, domain.Product{}, err
	}
	wanted := strings.TrimSpace(name)
	for _, line := range order.Lines {
		product, ok := products[line.ProductID]
		if ok && strings.EqualFold(product.Name, wanted) {
			return line, product, nil
		}
	}
	return domain.OrderLine{}, domain.Product{}, domain.NotFoundf("product '%s' not found in order %d", name, order.ID)
}
