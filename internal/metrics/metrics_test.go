package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"BridgeFeed/internal/model"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRefresh(OutcomeOK)
	m.ObservePrices(map[model.Asset]float64{model.BTC: 1}, 1)
	m.ObserveResolution(model.HistorySeries{Asset: model.BTC})
	m.ObserveVolatility(model.BTC, 1)
	m.ObserveDiscard(model.BTC)
}

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRefresh(OutcomeOK)
	m.ObserveRefresh(OutcomeOK)
	m.ObserveRefresh(OutcomeSkipped)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues(OutcomeSkipped)))

	m.ObserveResolution(model.HistorySeries{Asset: model.ZAR, Provenance: model.ProvenanceSynthetic, Reason: model.ReasonNoHistory})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("ZAR", "synthetic", "no-history")))

	m.ObservePrices(map[model.Asset]float64{model.ETH: 52450}, 1716213600)
	assert.Equal(t, 52450.0, testutil.ToFloat64(m.Price.WithLabelValues("ETH")))
	assert.Equal(t, 1716213600.0, testutil.ToFloat64(m.LastRefresh))

	m.ObserveVolatility(model.ETH, 3.24)
	assert.Equal(t, 3.24, testutil.ToFloat64(m.Volatility.WithLabelValues("ETH")))
}
