package domain

import "math"

// MarginPercent returns (price-cost)/price as a percentage rounded to two decimals.
func MarginPercent(price, cost float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Round((price-cost)/price*10000) / 100
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
