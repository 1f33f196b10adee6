package shared

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places kept for currency amounts
const MoneyScale = 2

// Cent is the smallest currency unit
var Cent = decimal.New(1, -MoneyScale)

// RoundMoney rounds an amount half away from zero to cents
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// MinMoney returns the smaller of two amounts
func MinMoney(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampMoney bounds v to [lo, hi]
func ClampMoney(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
