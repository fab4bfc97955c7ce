package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// LineView — проекция позиции заказа для клиента.
type LineView struct {
	LineID      int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// OrderView — проекция заказа с позициями и итогами.
type OrderView struct {
	ID             int64
	CustomerID     int64
	AddressID      int64
	Date           time.Time
	TotalSum       decimal.Decimal
	ShippingCharge decimal.Decimal
	Status         domain.OrderStatus
	Lines          []LineView
}

func lineView(line domain.OrderLine, productName string) LineView {
	return LineView{
		LineID:      line.ID,
		ProductID:   line.ProductID,
		ProductName: productName,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		TotalPrice:  line.Total(),
	}
}

func orderView(order domain.Order, products map[int64]domain.Product) OrderView {
	view := OrderView{
		ID:             order.ID,
		CustomerID:     order.CustomerID,
		AddressID:      order.AddressID,
		Date:           order.Date,
		TotalSum:       order.TotalSum,
		ShippingCharge: order.ShippingCharge,
		Status:         order.Status,
		Lines:          make([]LineView, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, lineView(line, products[line.ProductID].Name))
	}
	return view
}

// orderViews строит проекции, подтягивая имена товаров одним запросом.
func orderViews(ctx context.Context, reader domain.Reader, orders []domain.Order) ([]OrderView, error) {
	var ids []int64
	for _, order := range orders {
		ids = append(ids, order.ProductIDs()...)
	}
	products, err := reader.ProductsByIDs(ctx, sortedUnique(ids))
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, orderView(order, products))
	}
	return views, nil
}
