package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// ToMinorUnits converts a decimal currency value to cents, rounding half up.
// NewFromFloat keeps the shortest decimal form, so 1.005 becomes 101 and not 100.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Add(half).Floor().IntPart()
}

// FromMinorUnits converts cents back to a decimal currency value.
func FromMinorUnits(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// FormatBRL renders cents as Brazilian reais, e.g. "R$1.234,56".
func FormatBRL(cents int64) string {
	return money.New(cents, money.BRL).Display()
}
