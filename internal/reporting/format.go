package reporting

import (
	"math"

	"github.com/shopspring/decimal"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// money renders a dollar amount rounded half away from zero to cents.
func money(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// pct renders a fraction as a percentage with two decimals.
func pct(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

func num(v float64, places int32) string {
	if !finite(v) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
