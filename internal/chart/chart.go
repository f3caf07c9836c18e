package chart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"BridgeFeed/internal/history"
	"BridgeFeed/internal/market"
	"BridgeFeed/internal/metrics"
	"BridgeFeed/internal/model"
	"BridgeFeed/internal/race"
	"BridgeFeed/internal/recorder"
)

// DefaultGuard bounds how long a selection waits before showing a synthetic series.
const DefaultGuard = 5 * time.Second

// State is the phase of the current selection cycle.
type State string

const (
	StateIdle                     State = "idle"
	StateFetching                 State = "fetching"
	StateResolvedLive             State = "resolved-live"
	StateResolvedSyntheticError   State = "resolved-synthetic-after-error"
	StateResolvedSyntheticTimeout State = "resolved-synthetic-after-timeout"
)

// Resolved reports whether the cycle has committed a series.
func (s State) Resolved() bool {
	return s != StateIdle && s != StateFetching
}

// View is what the rendering layer needs for the selected asset.
type View struct {
	Asset         model.Asset          `json:"asset"`
	Price         float64              `json:"price"`
	Points        []model.PricePoint   `json:"points"`
	Provenance    model.Provenance     `json:"provenance,omitempty"`
	Reason        model.FallbackReason `json:"reason,omitempty"`
	Reconstructed bool                 `json:"reconstructed"`
	Volatility    float64              `json:"volatility"`
	State         State                `json:"state"`
	CycleID       string               `json:"cycle_id,omitempty"`
	LastUpdated   time.Time            `json:"last_updated"`
}

// Chart owns the selected asset and commits at most one series per selection.
// Results that arrive after the asset changed, or after the guard already
// committed a synthetic series, are dropped.
type Chart struct {
	cache    *history.Cache
	table    *market.PriceTable
	index    *market.VolatilityIndex
	recorder recorder.Recorder
	guard    time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	selected model.Asset
	cycle    uint64
	cycleID  string
	started  time.Time
	state    State
	series   model.HistorySeries
}

// New creates a Chart. A non-positive guard selects DefaultGuard.
func New(cache *history.Cache, table *market.PriceTable, index *market.VolatilityIndex, rec recorder.Recorder, guard time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *Chart {
	if guard <= 0 {
		guard = DefaultGuard
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Chart{
		cache:    cache,
		table:    table,
		index:    index,
		recorder: rec,
		guard:    guard,
		log:      log.WithField("component", "chart"),
		metrics:  m,
		state:    StateIdle,
	}
}

// Select makes asset the current selection and starts a new cycle. It returns
// once a series is committed, which takes at most the guard duration.
func (c *Chart) Select(ctx context.Context, asset model.Asset) View {
	c.mu.Lock()
	c.cycle++
	cycle := c.cycle
	c.selected = asset
	c.cycleID = uuid.NewString()
	c.started = time.Now()
	c.state = StateFetching
	c.series = model.HistorySeries{}
	c.mu.Unlock()

	log := c.log.WithField("asset", asset)

	settled := make(chan struct{})
	go func() {
		defer close(settled)
		s := c.cache.Resolve(ctx, asset)
		if !c.commit(asset, cycle, s) {
			log.Debug("late history result dropped")
			c.metrics.ObserveDiscard(asset)
		}
	}()

	out := race.FirstSettle(ctx, c.guard, func(context.Context) (struct{}, error) {
		<-settled
		return struct{}{}, nil
	})
	switch out.Winner {
	case race.WinnerTimer:
		log.Warnf("no history after %v, showing reconstructed series", c.guard)
		c.commit(asset, cycle, c.cache.Synthesize(asset, model.ReasonTimeout))
	case race.WinnerCancelled:
		log.WithError(out.Err).Warn("selection cancelled, showing reconstructed series")
		c.commit(asset, cycle, c.cache.Synthesize(asset, model.ReasonError))
	}
	return c.View()
}

// commit stores s if asset is still selected and the cycle has not resolved yet.
func (c *Chart) commit(asset model.Asset, cycle uint64, s model.HistorySeries) bool {
	c.mu.Lock()
	if c.selected != asset || c.cycle != cycle || c.state.Resolved() {
		c.mu.Unlock()
		return false
	}
	c.cache.Commit(s)
	c.series = s
	c.state = stateFor(s)
	evt := &recorder.HistoryEvent{
		CycleID:    c.cycleID,
		Asset:      asset,
		Provenance: s.Provenance,
		Reason:     s.Reason,
		Points:     len(s.Points),
		Volatility: c.index.Get(asset),
		Elapsed:    time.Since(c.started),
		At:         time.Now(),
	}
	c.mu.Unlock()

	if len(s.Points) > 0 {
		evt.FirstPrice = s.Points[0].Price
		evt.LastPrice = s.Points[len(s.Points)-1].Price
	}
	if err := c.recorder.RecordHistory(evt); err != nil {
		c.log.WithError(err).Error("record history")
	}
	return true
}

func stateFor(s model.HistorySeries) State {
	switch {
	case s.Provenance == model.ProvenanceLive:
		return StateResolvedLive
	case s.Reason == model.ReasonTimeout:
		return StateResolvedSyntheticTimeout
	default:
		return StateResolvedSyntheticError
	}
}

// Selected returns the current asset, empty before the first selection.
func (c *Chart) Selected() model.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// View returns the current rendering state.
func (c *Chart) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	points := make([]model.PricePoint, len(c.series.Points))
	copy(points, c.series.Points)
	return View{
		Asset:         c.selected,
		Price:         c.table.Price(c.selected),
		Points:        points,
		Provenance:    c.series.Provenance,
		Reason:        c.series.Reason,
		Reconstructed: c.series.Synthetic(),
		Volatility:    c.index.Get(c.selected),
		State:         c.state,
		CycleID:       c.cycleID,
		LastUpdated:   c.table.LastUpdated(),
	}
}
