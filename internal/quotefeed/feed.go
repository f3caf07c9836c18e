package quotefeed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"BridgeFeed/internal/collector"
	"BridgeFeed/internal/market"
	"BridgeFeed/internal/metrics"
	"BridgeFeed/internal/model"
	"BridgeFeed/internal/recorder"
)

// CURRPerETH is the fixed ratio the protocol token is quoted at against ETH.
const CURRPerETH = 2000.0

// SessionChecker reports whether an authenticated session is active.
type SessionChecker interface {
	Active() bool
}

// Feed keeps a PriceTable fresh from a market-data source.
type Feed struct {
	fetcher  collector.Fetcher
	table    *market.PriceTable
	session  SessionChecker
	recorder recorder.Recorder
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	fiat     model.Asset
	timeout  time.Duration

	inFlight atomic.Bool
	now      func() time.Time
}

// NewFeed creates a Feed that writes into table. Each fetch is bounded by timeout
// when positive.
func NewFeed(fetcher collector.Fetcher, table *market.PriceTable, session SessionChecker, rec recorder.Recorder, timeout time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *Feed {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Feed{
		fetcher:  fetcher,
		table:    table,
		session:  session,
		recorder: rec,
		log:      log.WithField("component", "quotefeed"),
		metrics:  m,
		fiat:     model.Fiat,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Loading reports whether a refresh is in flight.
func (f *Feed) Loading() bool { return f.inFlight.Load() }

// LastUpdated returns when quotes were last merged.
func (f *Feed) LastUpdated() time.Time { return f.table.LastUpdated() }

// Prices returns a snapshot of the current table.
func (f *Feed) Prices() map[model.Asset]float64 { return f.table.Snapshot() }

// Refresh fetches current prices and merges them into the table. It does nothing
// when no session is active or another refresh is still outstanding; such calls
// are dropped, not queued. Failures leave the table untouched and are only logged.
func (f *Feed) Refresh(ctx context.Context) {
	if f.session == nil || !f.session.Active() {
		f.log.Debug("no active session, refresh skipped")
		f.metrics.ObserveRefresh(metrics.OutcomeSkipped)
		return
	}
	if !f.inFlight.CompareAndSwap(false, true) {
		f.log.Debug("refresh already in flight, dropped")
		f.metrics.ObserveRefresh(metrics.OutcomeSkipped)
		return
	}
	defer f.inFlight.Store(false)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	quotes, err := f.fetch(ctx)
	if err != nil {
		f.log.WithError(err).Warn("price refresh failed, keeping last known prices")
		f.metrics.ObserveRefresh(metrics.OutcomeError)
		return
	}

	at := f.now()
	f.table.Merge(quotes, at)
	f.metrics.ObserveRefresh(metrics.OutcomeOK)
	f.metrics.ObservePrices(f.table.Snapshot(), float64(at.Unix()))
	f.log.WithField("source", f.fetcher.Name()).Infof("prices refreshed: %d quotes", len(quotes))

	if err := f.recorder.RecordQuotes(&recorder.QuoteSnapshot{
		Source: f.fetcher.Name(),
		Prices: quotes,
		At:     at,
	}); err != nil {
		f.log.WithError(err).Error("record quotes")
	}
}

// fetch asks the source for every quoted asset and derives the protocol token.
func (f *Feed) fetch(ctx context.Context) (map[model.Asset]float64, error) {
	assets := collector.QuotedAssets()
	ids := make([]string, 0, len(assets))
	byID := make(map[string]model.Asset, len(assets))
	for _, a := range assets {
		id, _ := collector.AssetID(a)
		ids = append(ids, id)
		byID[id] = a
	}

	raw, err := f.fetcher.FetchCurrentPrices(ctx, ids, collector.FiatCode(f.fiat))
	if err != nil {
		return nil, err
	}

	quotes := make(map[model.Asset]float64, len(raw)+1)
	for id, p := range raw {
		if a, ok := byID[id]; ok {
			quotes[a] = p
		}
	}
	if eth, ok := quotes[model.ETH]; ok {
		quotes[model.CURR] = eth / CURRPerETH
	}
	return quotes, nil
}
