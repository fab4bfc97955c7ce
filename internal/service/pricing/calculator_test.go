package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func TestTotal(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	total := calc.Total([]domain.OrderLine{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("100.10")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.80")},
	})
	require.True(t, total.Equal(decimal.RequireFromString("201")), "got %s", total)
	require.True(t, calc.Total(nil).IsZero())
}

func TestShippingThreshold(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	tests := []struct {
		total string
		want  string
	}{
		{total: "0", want: "150"},
		{total: "599.99", want: "150"},
		{total: "600", want: "150"},
		{total: "600.01", want: "0"},
		{total: "1200", want: "0"},
	}

	for _, tt := range tests {
		got := calc.Shipping(decimal.RequireFromString(tt.total))
		require.Truef(t, got.Equal(decimal.RequireFromString(tt.want)), "Shipping(%s) = %s, want %s", tt.total, got, tt.want)
	}
}

func TestShippingCustomConfig(t *testing.T) {
	calc := NewCalculator(Config{
		FreeShippingLimit: decimal.NewFromInt(100),
		StandardShipping:  decimal.RequireFromString("9.90"),
	})

	require.True(t, calc.Shipping(decimal.NewFromInt(50)).Equal(decimal.RequireFromString("9.90")))
	require.True(t, calc.Shipping(decimal.NewFromInt(101)).IsZero())
}
