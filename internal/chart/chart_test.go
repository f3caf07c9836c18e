package chart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BridgeFeed/internal/history"
	"BridgeFeed/internal/market"
	"BridgeFeed/internal/metrics"
	"BridgeFeed/internal/model"
	"BridgeFeed/internal/recorder"
)

// gatedFetcher serves fixed histories; ids listed in gates block until their
// channel is closed.
type gatedFetcher struct {
	history map[string][]model.RawPoint
	gates   map[string]chan struct{}
	entered chan string
	err     error
}

func (g *gatedFetcher) Name() string { return "gated" }

func (g *gatedFetcher) FetchCurrentPrices(context.Context, []string, string) (map[string]float64, error) {
	return nil, errors.New("not used")
}

func (g *gatedFetcher) FetchHistory(ctx context.Context, id, _ string, _ time.Duration, _ string) ([]model.RawPoint, error) {
	if g.entered != nil {
		g.entered <- id
	}
	if gate, ok := g.gates[id]; ok {
		<-gate
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.history[id], nil
}

func hourly(prices ...float64) []model.RawPoint {
	start := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	out := make([]model.RawPoint, len(prices))
	for i, p := range prices {
		out[i] = model.RawPoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

type memRecorder struct {
	recorder.NoopRecorder
	mu     sync.Mutex
	events []*recorder.HistoryEvent
}

func (r *memRecorder) RecordHistory(e *recorder.HistoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *memRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	chart   *Chart
	index   *market.VolatilityIndex
	table   *market.PriceTable
	metrics *metrics.Metrics
	rec     *memRecorder
}

func newFixture(t *testing.T, fetcher *gatedFetcher, fetchTimeout, guard time.Duration) *fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	table := market.NewPriceTable(nil)
	index := market.NewVolatilityIndex()
	m := metrics.New(prometheus.NewRegistry())
	cache := history.NewCache(fetcher, table, index, history.Options{FetchTimeout: fetchTimeout, Location: time.UTC}, logger, m)
	rec := &memRecorder{}
	return &fixture{
		chart:   New(cache, table, index, rec, guard, logger, m),
		index:   index,
		table:   table,
		metrics: m,
		rec:     rec,
	}
}

func TestSelect_Live(t *testing.T) {
	f := newFixture(t, &gatedFetcher{history: map[string][]model.RawPoint{
		"bitcoin": hourly(100, 120, 90, 110),
	}}, time.Second, time.Second)

	v := f.chart.Select(context.Background(), model.BTC)

	assert.Equal(t, model.BTC, v.Asset)
	assert.Equal(t, StateResolvedLive, v.State)
	assert.False(t, v.Reconstructed)
	assert.Equal(t, 27.27, v.Volatility)
	assert.Equal(t, market.SeedPrices[model.BTC], v.Price)
	require.Len(t, v.Points, 4)
	assert.NotEmpty(t, v.CycleID)
	assert.Equal(t, 1, f.rec.count())
}

func TestSelect_ErrorIsReconstructed(t *testing.T) {
	f := newFixture(t, &gatedFetcher{err: errors.New("502")}, time.Second, time.Second)

	v := f.chart.Select(context.Background(), model.SOL)

	assert.Equal(t, StateResolvedSyntheticError, v.State)
	assert.True(t, v.Reconstructed)
	require.Len(t, v.Points, 7)
	assert.InDelta(t, market.SeedPrices[model.SOL], v.Points[6].Price, 1e-9)
}

func TestSelect_FiatReference(t *testing.T) {
	f := newFixture(t, &gatedFetcher{}, time.Second, time.Second)

	v := f.chart.Select(context.Background(), model.ZAR)

	assert.Equal(t, model.ProvenanceSynthetic, v.Provenance)
	assert.Equal(t, model.ReasonNoHistory, v.Reason)
	require.Len(t, v.Points, 7)
	assert.InDelta(t, 1.0, v.Points[6].Price, 1e-12)
}

func TestSelect_GuardCommitsSyntheticAndDropsLateResult(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, &gatedFetcher{
		history: map[string][]model.RawPoint{"ethereum": hourly(1, 2, 3, 4, 5, 6, 7, 8)},
		gates:   map[string]chan struct{}{"ethereum": gate},
	}, 2*time.Second, 50*time.Millisecond)

	start := time.Now()
	v := f.chart.Select(context.Background(), model.ETH)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, StateResolvedSyntheticTimeout, v.State)
	assert.True(t, v.Reconstructed)
	require.Len(t, v.Points, 7)
	assert.InDelta(t, market.SeedPrices[model.ETH], v.Points[6].Price, 1e-9)
	vol := v.Volatility

	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.Discarded.WithLabelValues("ETH")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	after := f.chart.View()
	assert.Equal(t, StateResolvedSyntheticTimeout, after.State)
	assert.Equal(t, v.Points, after.Points)
	assert.Equal(t, vol, f.index.Get(model.ETH))
	assert.Equal(t, 1, f.rec.count())
}

func TestSelect_StaleAssetResponseIsIgnored(t *testing.T) {
	ethGate := make(chan struct{})
	entered := make(chan string, 4)
	f := newFixture(t, &gatedFetcher{
		history: map[string][]model.RawPoint{
			"ethereum": hourly(10, 50, 5, 20),
			"bitcoin":  hourly(100, 120, 90, 110),
		},
		gates:   map[string]chan struct{}{"ethereum": ethGate},
		entered: entered,
	}, 5*time.Second, 5*time.Second)

	ethDone := make(chan View, 1)
	go func() { ethDone <- f.chart.Select(context.Background(), model.ETH) }()
	require.Equal(t, "ethereum", <-entered)

	btc := f.chart.Select(context.Background(), model.BTC)
	require.Equal(t, "bitcoin", <-entered)
	assert.Equal(t, StateResolvedLive, btc.State)
	assert.Equal(t, 27.27, btc.Volatility)

	close(ethGate)
	<-ethDone

	v := f.chart.View()
	assert.Equal(t, model.BTC, v.Asset)
	assert.Equal(t, btc.Points, v.Points)
	assert.Equal(t, btc.CycleID, v.CycleID)
	assert.Equal(t, 27.27, v.Volatility)
	assert.Equal(t, 27.27, f.index.Get(model.BTC))
	assert.Zero(t, f.index.Get(model.ETH), "late ETH data is never committed")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Discarded.WithLabelValues("ETH")))
	assert.Equal(t, 1, f.rec.count())
}

func TestView_BeforeSelection(t *testing.T) {
	f := newFixture(t, &gatedFetcher{}, time.Second, time.Second)

	v := f.chart.View()

	assert.Equal(t, StateIdle, v.State)
	assert.Empty(t, v.Points)
	assert.Equal(t, model.Asset(""), f.chart.Selected())
}

func TestSelect_CancelledIsNotReportedAsTimeout(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	entered := make(chan string, 1)
	f := newFixture(t, &gatedFetcher{
		history: map[string][]model.RawPoint{"ethereum": hourly(1, 2, 3)},
		gates:   map[string]chan struct{}{"ethereum": gate},
		entered: entered,
	}, 5*time.Second, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan View, 1)
	go func() { done <- f.chart.Select(ctx, model.ETH) }()
	<-entered
	cancel()

	var v View
	select {
	case v = <-done:
	case <-time.After(time.Second):
		t.Fatal("select did not return after cancellation")
	}
	assert.Equal(t, StateResolvedSyntheticError, v.State)
	assert.Equal(t, model.ReasonError, v.Reason)
	assert.True(t, v.Reconstructed)
}
