package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Config задаёт правила доставки.
type Config struct {
	// FreeShippingLimit — сумма заказа, выше которой доставка бесплатна.
	FreeShippingLimit decimal.Decimal
	// StandardShipping — стоимость доставки для остальных заказов.
	StandardShipping decimal.Decimal
}

// DefaultConfig возвращает стандартные правила: бесплатно от 600, иначе 150.
func DefaultConfig() Config {
	return Config{
		FreeShippingLimit: decimal.NewFromInt(600),
		StandardShipping:  decimal.NewFromInt(150),
	}
}

// Calculator считает сумму заказа и стоимость доставки.
type Calculator struct {
	cfg Config
}

// NewCalculator создаёт калькулятор с заданными правилами.
func NewCalculator(cfg Config) Calculator {
	return Calculator{cfg: cfg}
}

// Total — сумма по позициям: количество * зафиксированная цена.
func (c Calculator) Total(lines []domain.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}

// Shipping возвращает стоимость доставки. Порог строгий: ровно FreeShippingLimit
// ещё оплачивается.
func (c Calculator) Shipping(total decimal.Decimal) decimal.Decimal {
	if total.GreaterThan(c.cfg.FreeShippingLimit) {
		return decimal.Zero
	}
	return c.cfg.StandardShipping
}
