package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"BridgeFeed/internal/model"
)

const namespace = "bridgefeed"

// Refresh outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors shared by the feed, the history cache and the chart.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Refreshes   *prometheus.CounterVec
	Resolutions *prometheus.CounterVec
	Discarded   *prometheus.CounterVec
	Price       *prometheus.GaugeVec
	Volatility  *prometheus.GaugeVec
	LastRefresh prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_refreshes_total",
			Help:      "Quote refresh attempts by outcome.",
		}, []string{"outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_resolutions_total",
			Help:      "History series produced, by asset, provenance and fallback reason.",
		}, []string{"asset", "provenance", "reason"}),
		Discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_discarded_total",
			Help:      "Late or stale history results that were dropped.",
		}, []string{"asset"}),
		Price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price",
			Help:      "Current fiat price per asset.",
		}, []string{"asset"}),
		Volatility: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volatility_percent",
			Help:      "Volatility of the last committed series per asset.",
		}, []string{"asset"}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful quote refresh.",
		}),
	}
	reg.MustRegister(m.Refreshes, m.Resolutions, m.Discarded, m.Price, m.Volatility, m.LastRefresh)
	return m
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePrices(prices map[model.Asset]float64, unix float64) {
	if m == nil {
		return
	}
	for a, p := range prices {
		m.Price.WithLabelValues(string(a)).Set(p)
	}
	m.LastRefresh.Set(unix)
}

func (m *Metrics) ObserveResolution(s model.HistorySeries) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(string(s.Asset), string(s.Provenance), string(s.Reason)).Inc()
}

func (m *Metrics) ObserveVolatility(a model.Asset, pct float64) {
	if m == nil {
		return
	}
	m.Volatility.WithLabelValues(string(a)).Set(pct)
}

func (m *Metrics) ObserveDiscard(a model.Asset) {
	if m == nil {
		return
	}
	m.Discarded.WithLabelValues(string(a)).Inc()
}
