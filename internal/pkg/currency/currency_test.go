package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		want   string
	}{
		{"zero", decimal.Zero, "₹0.00"},
		{"under a thousand", decimal.NewFromFloat(999.50), "₹999.50"},
		{"thousands", decimal.NewFromFloat(1499.99), "₹1,499.99"},
		{"lakh", decimal.NewFromFloat(123456.78), "₹1,23,456.78"},
		{"crore", decimal.NewFromInt(12345678), "₹1,23,45,678.00"},
		{"exact thousand", decimal.NewFromInt(1000), "₹1,000.00"},
		{"negative", decimal.NewFromFloat(-1234.56), "-₹1,234.56"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.amount))
		})
	}
}
