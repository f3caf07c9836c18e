package model

import "time"

// RawPoint is one (timestamp, price) pair as returned by a history source.
type RawPoint struct {
	Timestamp time.Time
	Price     float64
}

// PricePoint is a display-ready chart point.
type PricePoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

// Provenance tells whether a series came from the live source or was synthesized.
type Provenance string

const (
	ProvenanceLive      Provenance = "live"
	ProvenanceSynthetic Provenance = "synthetic"
)

// FallbackReason records why a synthetic series was used.
type FallbackReason string

const (
	ReasonNone      FallbackReason = ""
	ReasonNoHistory FallbackReason = "no-history"
	ReasonError     FallbackReason = "error"
	ReasonTimeout   FallbackReason = "timeout"
	ReasonEmpty     FallbackReason = "empty"
)

// HistorySeries is the resampled series for one asset and one fetch cycle.
type HistorySeries struct {
	Asset      Asset          `json:"asset"`
	Points     []PricePoint   `json:"points"`
	Provenance Provenance     `json:"provenance"`
	Reason     FallbackReason `json:"reason,omitempty"`
}

// Synthetic reports whether the series was reconstructed rather than fetched.
func (s HistorySeries) Synthetic() bool {
	return s.Provenance == ProvenanceSynthetic
}

// Prices returns the price column of the series in order.
func (s HistorySeries) Prices() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.Price
	}
	return prices
}
