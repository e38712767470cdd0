package util

import "github.com/shopspring/decimal"

// RoundCents rounds a monetary amount half away from zero to two decimals.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundWhole rounds a monetary amount to the nearest whole unit.
func RoundWhole(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}
