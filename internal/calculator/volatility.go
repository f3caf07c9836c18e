package calculator

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// CalculateVolatility returns the spread of the series relative to its last value,
// as a percentage rounded to two decimals: (max - min) / last * 100.
// Non-finite prices are skipped. A zero last price yields 0.
func CalculateVolatility(prices []float64) (float64, error) {
	high, low, last, err := CalculateRange(prices)
	if err != nil {
		return 0, err
	}
	if last == 0 {
		return 0, nil
	}
	pct := (high - low) / last * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, errors.New("volatility out of range")
	}
	return decimal.NewFromFloat(pct).Round(2).InexactFloat64(), nil
}
