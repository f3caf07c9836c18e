package history

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"BridgeFeed/internal/calculator"
	"BridgeFeed/internal/collector"
	"BridgeFeed/internal/market"
	"BridgeFeed/internal/metrics"
	"BridgeFeed/internal/model"
	"BridgeFeed/internal/race"
)

// ReferenceCurve is the shape synthetic series are built from. Only its shape
// matters: every synthetic series is rescaled so its last point equals the
// asset's current price.
var ReferenceCurve = []model.PricePoint{
	{Time: "00:00", Price: 51200},
	{Time: "04:00", Price: 51800},
	{Time: "08:00", Price: 52450},
	{Time: "12:00", Price: 52100},
	{Time: "16:00", Price: 52900},
	{Time: "20:00", Price: 52450},
	{Time: "23:59", Price: 52450},
}

// Options tunes a Cache. Zero values select the defaults.
type Options struct {
	FetchTimeout time.Duration
	Lookback     time.Duration
	Granularity  string
	Points       int
	Location     *time.Location
	Fiat         model.Asset
}

const (
	DefaultFetchTimeout = 6 * time.Second
	DefaultLookback     = 24 * time.Hour
	DefaultGranularity  = "hourly"
	DefaultPoints       = 7
)

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.Points <= 0 || o.Points > len(ReferenceCurve) {
		o.Points = DefaultPoints
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Fiat == "" {
		o.Fiat = model.Fiat
	}
	return o
}

// Cache produces a bounded-length, display-ready series for one asset. It never
// fails: slow, failed or empty fetches are replaced by a synthetic series.
type Cache struct {
	fetcher collector.Fetcher
	table   *market.PriceTable
	index   *market.VolatilityIndex
	opts    Options
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// NewCache creates a Cache. Granularity is passed through as given, so an empty
// value lets the source choose.
func NewCache(fetcher collector.Fetcher, table *market.PriceTable, index *market.VolatilityIndex, opts Options, log logrus.FieldLogger, m *metrics.Metrics) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{
		fetcher: fetcher,
		table:   table,
		index:   index,
		opts:    opts.withDefaults(),
		log:     log.WithField("component", "history"),
		metrics: m,
	}
}

// Points returns the target series length.
func (c *Cache) Points() int { return c.opts.Points }

// GetHistory resolves the series for asset and stores its volatility.
func (c *Cache) GetHistory(ctx context.Context, asset model.Asset) model.HistorySeries {
	s := c.Resolve(ctx, asset)
	c.Commit(s)
	return s
}

// Resolve returns the live series for asset, or a synthetic one when the asset
// has no market or the single fetch attempt fails, times out or comes back empty.
// It has no effect on the volatility index.
func (c *Cache) Resolve(ctx context.Context, asset model.Asset) model.HistorySeries {
	log := c.log.WithField("asset", asset)

	id, ok := collector.AssetID(asset)
	if !asset.HasMarket() || !ok {
		return c.Synthesize(asset, model.ReasonNoHistory)
	}

	out := race.FirstSettle(ctx, c.opts.FetchTimeout, func(ctx context.Context) ([]model.RawPoint, error) {
		return c.fetcher.FetchHistory(ctx, id, collector.FiatCode(c.opts.Fiat), c.opts.Lookback, c.opts.Granularity)
	})
	switch {
	case out.TimedOut():
		log.Warnf("history fetch exceeded %v, using synthetic series", c.opts.FetchTimeout)
		return c.Synthesize(asset, model.ReasonTimeout)
	case out.Err != nil:
		log.WithError(out.Err).Warn("history fetch failed, using synthetic series")
		return c.Synthesize(asset, model.ReasonError)
	case len(out.Value) == 0:
		log.Warn("history fetch returned no points, using synthetic series")
		return c.Synthesize(asset, model.ReasonEmpty)
	}

	sampled := calculator.Resample(out.Value, c.opts.Points)
	points := make([]model.PricePoint, len(sampled))
	for i, p := range sampled {
		points[i] = model.PricePoint{Time: p.Timestamp.In(c.opts.Location).Format("15:04"), Price: p.Price}
	}
	s := model.HistorySeries{Asset: asset, Points: points, Provenance: model.ProvenanceLive}
	c.metrics.ObserveResolution(s)
	log.Debugf("history resolved from %s: %d raw points, %d sampled", c.fetcher.Name(), len(out.Value), len(points))
	return s
}

// Synthesize rescales the reference curve so that its last point equals the
// asset's current price.
func (c *Cache) Synthesize(asset model.Asset, reason model.FallbackReason) model.HistorySeries {
	curve := calculator.Resample(ReferenceCurve, c.opts.Points)
	s := model.HistorySeries{
		Asset:      asset,
		Points:     calculator.Rescale(curve, c.table.Price(asset)),
		Provenance: model.ProvenanceSynthetic,
		Reason:     reason,
	}
	c.metrics.ObserveResolution(s)
	return s
}

// Commit computes the volatility of s and stores it for s.Asset, overwriting any
// earlier value.
func (c *Cache) Commit(s model.HistorySeries) {
	vol, err := calculator.CalculateVolatility(s.Prices())
	if err != nil {
		c.log.WithField("asset", s.Asset).WithError(err).Warn("volatility not updated")
		return
	}
	c.index.Set(s.Asset, vol)
	c.metrics.ObserveVolatility(s.Asset, vol)
}

// Volatility returns the stored volatility of asset.
func (c *Cache) Volatility(asset model.Asset) float64 {
	return c.index.Get(asset)
}
