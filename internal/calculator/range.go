package calculator

import (
	"errors"
	"math"
)

// CalculateRange returns the high and low of the series together with its last
// finite value. NaN and infinite prices are skipped.
func CalculateRange(prices []float64) (high, low, last float64, err error) {
	high = math.Inf(-1)
	low = math.Inf(1)
	n := 0
	for _, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
		last = p
		n++
	}
	if n == 0 {
		return 0, 0, 0, errors.New("no finite prices provided")
	}
	return high, low, last, nil
}
