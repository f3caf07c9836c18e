package recorder

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"BridgeFeed/internal/model"
)

// SQLiteRecorder persists diagnostics to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log logrus.FieldLogger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log logrus.FieldLogger) (*SQLiteRecorder, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.WithField("component", "recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_snapshots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			source    TEXT,
			asset     TEXT NOT NULL,
			price     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quote_ts ON quote_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS history_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			cycle_id    TEXT,
			asset       TEXT NOT NULL,
			provenance  TEXT,
			reason      TEXT,
			points      INTEGER,
			first_price REAL,
			last_price  REAL,
			volatility  REAL,
			elapsed_ms  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_ts ON history_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordQuotes writes one row per asset in a single transaction.
func (r *SQLiteRecorder) RecordQuotes(snap *QuoteSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	assets := make([]model.Asset, 0, len(snap.Prices))
	for a := range snap.Prices {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	for _, a := range assets {
		if _, err := tx.Exec(`INSERT INTO quote_snapshots (timestamp, source, asset, price) VALUES (?,?,?,?)`,
			snap.At.Unix(), snap.Source, string(a), snap.Prices[a]); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordHistory(evt *HistoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO history_events
		(timestamp, cycle_id, asset, provenance, reason, points, first_price, last_price, volatility, elapsed_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.CycleID, string(evt.Asset), string(evt.Provenance), string(evt.Reason),
		evt.Points, evt.FirstPrice, evt.LastPrice, evt.Volatility, evt.Elapsed.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
