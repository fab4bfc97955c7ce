package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusConfirmed — заказ принят, товары зарезервированы; позиции можно менять.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered — заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", InvalidInputf("unknown order status %q", raw)
	}
	return status, nil
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderLine — позиция заказа. Цена фиксируется в момент добавления и дальше не меняется.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Total возвращает стоимость позиции: количество * цена за единицу.
func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID             int64
	CustomerID     int64
	AddressID      int64
	Date           time.Time
	TotalSum       decimal.Decimal
	ShippingCharge decimal.Decimal
	Status         OrderStatus
	Lines          []OrderLine
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Mutable сообщает, можно ли менять позиции заказа.
func (o Order) Mutable() bool {
	return o.Status == OrderStatusConfirmed
}

// LineForProduct ищет позицию по товару.
func (o Order) LineForProduct(productID int64) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return OrderLine{}, false
}

// ReplaceLine заменяет позицию с тем же ID.
func (o *Order) ReplaceLine(line OrderLine) {
	for i := range o.Lines {
		if o.Lines[i].ID == line.ID {
			o.Lines[i] = line
			return
		}
	}
}

// RemoveLine удаляет позицию по ID.
func (o *Order) RemoveLine(lineID int64) {
	kept := o.Lines[:0]
	for _, line := range o.Lines {
		if line.ID != lineID {
			kept = append(kept, line)
		}
	}
	o.Lines = kept
}

// ProductIDs возвращает идентификаторы товаров в порядке позиций.
func (o Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Lines))
	for _, line := range o.Lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// Clone возвращает копию заказа с независимым срезом позиций.
func (o Order) Clone() Order {
	clone := o
	if o.Lines != nil {
		clone.Lines = make([]OrderLine, len(o.Lines))
		copy(clone.Lines, o.Lines)
	}
	return clone
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID <= 0 {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.AddressID <= 0 {
		errs = append(errs, ErrAddressRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	calc := decimal.Zero
	seen := make(map[int64]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateProduct)
		}
		seen[line.ProductID] = struct{}{}
		calc = calc.Add(line.Total())
	}
	if !calc.Equal(o.TotalSum) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
