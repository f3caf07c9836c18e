package market

import (
	"sync"

	"BridgeFeed/internal/model"
)

// VolatilityIndex maps each asset to the volatility percentage of its last resolved series.
type VolatilityIndex struct {
	mu     sync.RWMutex
	values map[model.Asset]float64
}

func NewVolatilityIndex() *VolatilityIndex {
	values := make(map[model.Asset]float64, len(model.Assets))
	for _, a := range model.Assets {
		values[a] = 0
	}
	return &VolatilityIndex{values: values}
}

// Set overwrites the value for the asset.
func (v *VolatilityIndex) Set(a model.Asset, pct float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[a] = pct
}

func (v *VolatilityIndex) Get(a model.Asset) float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[a]
}

// Snapshot returns a copy of every entry.
func (v *VolatilityIndex) Snapshot() map[model.Asset]float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[model.Asset]float64, len(v.values))
	for a, pct := range v.values {
		out[a] = pct
	}
	return out
}
