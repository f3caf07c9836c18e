package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"BridgeFeed/internal/chart"
	"BridgeFeed/internal/collector"
	"BridgeFeed/internal/config"
	"BridgeFeed/internal/history"
	"BridgeFeed/internal/logger"
	"BridgeFeed/internal/market"
	"BridgeFeed/internal/metrics"
	"BridgeFeed/internal/model"
	"BridgeFeed/internal/quotefeed"
	"BridgeFeed/internal/recorder"
	"BridgeFeed/internal/scheduler"
	"BridgeFeed/internal/server"
	"BridgeFeed/internal/session"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config validation: %v", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log.Info("BridgeFeed starting...")

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("history location: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	table := market.NewPriceTable(nil)
	index := market.NewVolatilityIndex()

	// Init fetcher
	var fetcher collector.Fetcher
	if cfg.DataSource.Mock {
		fetcher = mockFetcher()
	} else {
		fetcher = collector.NewCoinGeckoFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.RequestTimeout)
	}
	log.Infof("data source: %s", fetcher.Name())

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.WithError(err).Warn("close recorder")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(cfg.Session.User)
	feed := quotefeed.NewFeed(fetcher, table, sess, rec, cfg.DataSource.RequestTimeout, log, m)
	cache := history.NewCache(fetcher, table, index, history.Options{
		FetchTimeout: cfg.History.FetchTimeout,
		Lookback:     cfg.History.Lookback,
		Granularity:  cfg.History.Granularity,
		Points:       cfg.History.Points,
		Location:     loc,
		Fiat:         model.Fiat,
	}, log, m)
	ch := chart.New(cache, table, index, rec, cfg.Chart.Guard, log, m)

	sched := scheduler.NewScheduler(ctx, feed, cfg.Quotes.Interval, log)
	if err := sched.Start(sess); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	log.WithField("session", sess.ID).Infof("session started for %s", sess.User)

	srv := server.New(cfg.Server.Addr, feed, ch, sched, sess, reg, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			cancel()
		}
	}()

	log.Info("BridgeFeed is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	sess.End()
	if err := srv.Shutdown(context.Background()); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	cancel()
	log.Info("BridgeFeed stopped")
}

// mockFetcher serves the seed prices so the service runs without network access.
func mockFetcher() *collector.MockFetcher {
	f := &collector.MockFetcher{}
	for _, a := range collector.QuotedAssets() {
		id, _ := collector.AssetID(a)
		f.SetPrice(id, market.SeedPrices[a])
	}
	return f
}
