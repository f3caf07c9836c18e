package market

import (
	"math"
	"sync"
	"time"

	"BridgeFeed/internal/model"
)

// SeedPrices are the startup quotes used until the first successful fetch.
var SeedPrices = map[model.Asset]float64{
	model.ETH:  52450.00,
	model.BTC:  1750000.00,
	model.SOL:  2850.00,
	model.USDC: 18.85,
	model.CURR: 24.50,
	model.ZAR:  1.00,
}

// PriceTable holds the current fiat price of every asset.
// The fiat reference is pinned to 1.0 and cannot be overwritten.
type PriceTable struct {
	mu          sync.RWMutex
	prices      map[model.Asset]float64
	lastUpdated time.Time
}

// NewPriceTable creates a table seeded with seed, falling back to SeedPrices for
// any asset seed leaves out.
func NewPriceTable(seed map[model.Asset]float64) *PriceTable {
	prices := make(map[model.Asset]float64, len(model.Assets))
	for _, a := range model.Assets {
		prices[a] = SeedPrices[a]
		if v, ok := seed[a]; ok && valid(v) {
			prices[a] = v
		}
	}
	prices[model.Fiat] = 1.0
	return &PriceTable{prices: prices}
}

// Price returns the current price of the asset.
func (t *PriceTable) Price(a model.Asset) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.prices[a]
}

// Snapshot returns a copy of the whole table.
func (t *PriceTable) Snapshot() map[model.Asset]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.Asset]float64, len(t.prices))
	for a, p := range t.prices {
		out[a] = p
	}
	return out
}

// LastUpdated returns when the table was last merged; zero before the first merge.
func (t *PriceTable) LastUpdated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastUpdated
}

// Merge overwrites the given quotes in a single step and stamps the update time.
// Unknown assets, negative or non-finite prices and the fiat reference are ignored.
// It returns the number of entries written.
func (t *PriceTable) Merge(quotes map[model.Asset]float64, at time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for a, p := range quotes {
		if a == model.Fiat || !valid(p) {
			continue
		}
		if _, known := t.prices[a]; !known {
			continue
		}
		t.prices[a] = p
		n++
	}
	t.lastUpdated = at
	return n
}

func valid(p float64) bool {
	return p >= 0 && !math.IsInf(p, 0)
}
