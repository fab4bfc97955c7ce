package fulfillmentv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int32           `json:"quantity"`
	Status      string          `json:"status"`
	Unit        string          `json:"unit,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderLine — позиция заказа с ценой на момент добавления.
type OrderLine struct {
	LineID      int64           `json:"line_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Order — заказ с позициями и итогами.
type Order struct {
	ID             int64           `json:"id"`
	CustomerID     int64           `json:"customer_id"`
	AddressID      int64           `json:"address_id"`
	Date           string          `json:"date"`
	TotalSum       decimal.Decimal `json:"total_sum"`
	ShippingCharge decimal.Decimal `json:"shipping_charge"`
	Status         string          `json:"status"`
	Lines          []OrderLine     `json:"lines"`
}

// LineItem — запрошенная позиция нового заказа.
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int32           `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
}

type CreateProductsRequest struct {
	Products []CreateProductRequest `json:"products"`
}

type UpdateProductPriceRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type RestockProductRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type SetProductQuantityRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type GetProductRequest struct {
	ProductID int64 `json:"product_id"`
}

type ListProductsRequest struct{}

type ProductResponse struct {
	Product Product `json:"product"`
}

type ListProductsResponse struct {
	Products []Product `json:"products"`
}

type CreateOrderRequest struct {
	CustomerID int64      `json:"customer_id"`
	AddressID  int64      `json:"address_id"`
	Items      []LineItem `json:"items"`
}

type AddOrderLineRequest struct {
	OrderID       int64  `json:"order_id"`
	ProductID     int64  `json:"product_id"`
	Quantity      int32  `json:"quantity"`
	CustomerEmail string `json:"customer_email"`
}

type UpdateOrderLineRequest struct {
	OrderID       int64  `json:"order_id"`
	ProductName   string `json:"product_name"`
	Quantity      int32  `json:"quantity"`
	CustomerEmail string `json:"customer_email"`
}

type DeleteOrderLineRequest struct {
	OrderID       int64  `json:"order_id"`
	ProductID     int64  `json:"product_id"`
	CustomerEmail string `json:"customer_email"`
}

type ListOrderLinesRequest struct {
	OrderID       int64  `json:"order_id"`
	CustomerEmail string `json:"customer_email"`
}

type UpdateOrderStatusRequest struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

type DeleteOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type ListOrdersRequest struct{}

type ListCustomerOrdersRequest struct {
	CustomerID int64 `json:"customer_id"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderLineResponse struct {
	Line OrderLine `json:"line"`
}

type ListOrderLinesResponse struct {
	Lines []OrderLine `json:"lines"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type DeleteOrderResponse struct {
	OrderID int64 `json:"order_id"`
}
