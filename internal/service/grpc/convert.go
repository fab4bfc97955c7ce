package grpcsvc

import (
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/api/fulfillment/v1"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
)

const orderDateLayout = "2006-01-02"

func toAPIProduct(product domain.Product) fulfillmentv1.Product {
	return fulfillmentv1.Product{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Quantity:    int32(product.Quantity), //nolint:gosec // остаток ограничен CHECK-ограничением и не выходит за int32.
		Status:      string(product.Status),
		Unit:        product.Unit,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

func toAPILine(line orders.LineView) fulfillmentv1.OrderLine {
	return fulfillmentv1.OrderLine{
		LineID:      line.LineID,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Quantity:    int32(line.Quantity), //nolint:gosec // количество приходит из int32 запроса.
		UnitPrice:   line.UnitPrice,
		TotalPrice:  line.TotalPrice,
	}
}

func toAPIOrder(view orders.OrderView) fulfillmentv1.Order {
	order := fulfillmentv1.Order{
		ID:             view.ID,
		CustomerID:     view.CustomerID,
		AddressID:      view.AddressID,
		Date:           view.Date.Format(orderDateLayout),
		TotalSum:       view.TotalSum,
		ShippingCharge: view.ShippingCharge,
		Status:         string(view.Status),
		Lines:          make([]fulfillmentv1.OrderLine, 0, len(view.Lines)),
	}
	for _, line := range view.Lines {
		order.Lines = append(order.Lines, toAPILine(line))
	}
	return order
}

func toAPIOrders(views []orders.OrderView) *fulfillmentv1.ListOrdersResponse {
	resp := &fulfillmentv1.ListOrdersResponse{Orders: make([]fulfillmentv1.Order, 0, len(views))}
	for _, view := range views {
		resp.Orders = append(resp.Orders, toAPIOrder(view))
	}
	return resp
}
