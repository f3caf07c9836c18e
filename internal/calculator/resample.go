package calculator

import "BridgeFeed/internal/model"

// Resample reduces raw to at most n points by taking every floor(len/n)-th element,
// always ending with the true last raw point. A series of n points or fewer is
// returned in full.
//
// The stride walk stops before the final index, so the last point is never
// emitted twice.
func Resample[T any](raw []T, n int) []T {
	if n <= 0 || len(raw) == 0 {
		return nil
	}
	if len(raw) <= n {
		out := make([]T, len(raw))
		copy(out, raw)
		return out
	}
	stride := len(raw) / n
	if stride < 1 {
		stride = 1
	}
	out := make([]T, 0, n)
	for i := 0; i < len(raw)-1 && len(out) < n-1; i += stride {
		out = append(out, raw[i])
	}
	return append(out, raw[len(raw)-1])
}

// Rescale multiplies every price so that the last point equals target.
// A zero last price leaves the curve flat at zero.
func Rescale(curve []model.PricePoint, target float64) []model.PricePoint {
	out := make([]model.PricePoint, len(curve))
	if len(curve) == 0 {
		return out
	}
	ref := curve[len(curve)-1].Price
	factor := 0.0
	if ref != 0 {
		factor = target / ref
	}
	for i, p := range curve {
		out[i] = model.PricePoint{Time: p.Time, Price: p.Price * factor}
	}
	if ref != 0 {
		out[len(out)-1].Price = target
	}
	return out
}
