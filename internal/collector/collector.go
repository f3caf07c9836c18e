package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"BridgeFeed/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Prices is keyed by market identifier. History, when nil, is generated around
// the identifier's price.
type MockFetcher struct {
	Prices     map[string]float64
	History    map[string][]model.RawPoint
	PriceErr   error
	HistoryErr error
	// Delay holds every call for the given duration or until ctx is done.
	Delay time.Duration
	// Gate, when set, blocks every call until a value is received or the channel is closed.
	Gate chan struct{}
	// Entered receives one value per call once the call has started, if set.
	Entered chan string

	priceCalls   atomic.Int32
	historyCalls atomic.Int32
	mu           sync.Mutex
}

func (m *MockFetcher) Name() string { return "mock" }

// PriceCalls returns how many times FetchCurrentPrices was invoked.
func (m *MockFetcher) PriceCalls() int { return int(m.priceCalls.Load()) }

// HistoryCalls returns how many times FetchHistory was invoked.
func (m *MockFetcher) HistoryCalls() int { return int(m.historyCalls.Load()) }

// SetPrice updates one quote while the fetcher is in use.
func (m *MockFetcher) SetPrice(id string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Prices == nil {
		m.Prices = make(map[string]float64)
	}
	m.Prices[id] = price
}

func (m *MockFetcher) wait(ctx context.Context, call string) error {
	if m.Entered != nil {
		m.Entered <- call
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *MockFetcher) FetchCurrentPrices(ctx context.Context, ids []string, _ string) (map[string]float64, error) {
	m.priceCalls.Add(1)
	if err := m.wait(ctx, "prices"); err != nil {
		return nil, err
	}
	if m.PriceErr != nil {
		return nil, m.PriceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		p, ok := m.Prices[id]
		if !ok {
			return nil, fmt.Errorf("mock: %w: missing %s", ErrMalformed, id)
		}
		out[id] = p
	}
	return out, nil
}

func (m *MockFetcher) FetchHistory(ctx context.Context, id, _ string, lookback time.Duration, _ string) ([]model.RawPoint, error) {
	m.historyCalls.Add(1)
	if err := m.wait(ctx, id); err != nil {
		return nil, err
	}
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.History != nil {
		bars := m.History[id]
		out := make([]model.RawPoint, len(bars))
		copy(out, bars)
		return out, nil
	}
	hours := int(lookback.Hours())
	if hours <= 0 {
		hours = 24
	}
	return generateMockHistory(m.Prices[id], hours, time.Now()), nil
}

// generateMockHistory builds count hourly points drifting gently around basePrice,
// ending at basePrice exactly.
func generateMockHistory(basePrice float64, count int, end time.Time) []model.RawPoint {
	points := make([]model.RawPoint, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count+1)*0.001)
		points[i] = model.RawPoint{
			Timestamp: end.Add(-time.Duration(count-1-i) * time.Hour),
			Price:     p,
		}
	}
	return points
}
