package recorder

import (
	"time"

	"BridgeFeed/internal/model"
)

// QuoteSnapshot holds the quotes merged by one successful refresh.
type QuoteSnapshot struct {
	Source string
	Prices map[model.Asset]float64
	At     time.Time
}

// HistoryEvent records one committed selection cycle.
type HistoryEvent struct {
	CycleID    string
	Asset      model.Asset
	Provenance model.Provenance
	Reason     model.FallbackReason
	Points     int
	FirstPrice float64
	LastPrice  float64
	Volatility float64
	Elapsed    time.Duration
	At         time.Time
}

// Recorder persists quote and history diagnostics for later analysis.
type Recorder interface {
	RecordQuotes(snap *QuoteSnapshot) error
	RecordHistory(evt *HistoryEvent) error
	Close() error
}
