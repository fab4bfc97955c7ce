package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus отражает доступность товара, выведенную из остатка.
type ProductStatus string

const (
	// ProductStatusInStock — остаток выше порога низкого запаса.
	ProductStatusInStock ProductStatus = "IN_STOCK"
	// ProductStatusPendingRestock — остаток положительный, но не выше порога.
	ProductStatusPendingRestock ProductStatus = "PENDING_RESTOCK"
	// ProductStatusOutOfStock — остаток равен нулю.
	ProductStatusOutOfStock ProductStatus = "OUT_OF_STOCK"
)

// DefaultLowStockThreshold — порог, при котором товар считается заканчивающимся.
const DefaultLowStockThreshold = 10

// Product — позиция каталога со складским остатком.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Status      ProductStatus
	Unit        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MoneyScale — число знаков после запятой в ценах и суммах.
const MoneyScale = 2

// maxPrice — граница NUMERIC(12,2) в хранилище.
var maxPrice = decimal.New(1, 12-MoneyScale)

// CheckPriceScale отклоняет цены с дробной частью мельче копейки и цены,
// которые не помещаются в хранилище.
func CheckPriceScale(price decimal.Decimal) error {
	if !price.Equal(price.Round(MoneyScale)) {
		return InvalidInputf("price %s has more than %d decimal places", price.String(), MoneyScale)
	}
	if price.Abs().GreaterThanOrEqual(maxPrice) {
		return InvalidInputf("price %s is too large", price.String())
	}
	return nil
}

// StockStatusFor выводит статус товара из остатка и порога низкого запаса.
func StockStatusFor(quantity, lowStockThreshold int) ProductStatus {
	switch {
	case quantity <= 0:
		return ProductStatusOutOfStock
	case quantity <= lowStockThreshold:
		return ProductStatusPendingRestock
	default:
		return ProductStatusInStock
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusInStock, ProductStatusPendingRestock, ProductStatusOutOfStock:
		return true
	default:
		return false
	}
}

// NormalizeProductName приводит имя к ключу уникальности (без регистра и пробелов по краям).
func NormalizeProductName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateInvariants проверяет инварианты товара при заданном пороге низкого запаса.
func (p Product) ValidateInvariants(lowStockThreshold int) []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrPriceNegative)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if p.Status != StockStatusFor(p.Quantity, lowStockThreshold) {
		errs = append(errs, ErrStockStatusMismatch)
	}

	return errs
}
