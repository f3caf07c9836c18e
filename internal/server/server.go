// Package server exposes prices and the chart view as a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"BridgeFeed/internal/chart"
	"BridgeFeed/internal/model"
)

// Quotes is the read side of the quote feed.
type Quotes interface {
	Prices() map[model.Asset]float64
	LastUpdated() time.Time
	Loading() bool
}

// Selector drives the chart.
type Selector interface {
	Select(ctx context.Context, asset model.Asset) chart.View
	View() chart.View
}

// Refresher triggers a manual quote refresh.
type Refresher interface {
	RefreshNow()
}

// SessionState reports whether the gating session is active.
type SessionState interface {
	Active() bool
}

// Server is the HTTP rendering boundary.
type Server struct {
	addr      string
	quotes    Quotes
	chart     Selector
	refresher Refresher
	session   SessionState
	gatherer  prometheus.Gatherer
	log       logrus.FieldLogger
	server    *http.Server
}

// New creates a Server. gatherer may be nil, in which case /metrics is not served.
func New(addr string, quotes Quotes, ch Selector, refresher Refresher, sess SessionState, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		addr:      addr,
		quotes:    quotes,
		chart:     ch,
		refresher: refresher,
		session:   sess,
		gatherer:  gatherer,
		log:       log.WithField("component", "server"),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /prices", s.handlePrices)
	mux.HandleFunc("GET /chart", s.handleChart)
	mux.HandleFunc("POST /chart/{asset}", s.handleSelect)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.logRequests(mux)
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Infof("listening on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start),
		}).Debug("request")
	})
}

type pricesResponse struct {
	Prices      map[model.Asset]float64 `json:"prices"`
	Fiat        model.Asset             `json:"fiat"`
	Loading     bool                    `json:"loading"`
	LastUpdated *time.Time              `json:"last_updated,omitempty"`
}

func (s *Server) handlePrices(w http.ResponseWriter, _ *http.Request) {
	resp := pricesResponse{
		Prices:  s.quotes.Prices(),
		Fiat:    model.Fiat,
		Loading: s.quotes.Loading(),
	}
	if t := s.quotes.LastUpdated(); !t.IsZero() {
		resp.LastUpdated = &t
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChart(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.chart.View())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	asset, err := model.ParseAsset(r.PathValue("asset"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The selection outlives a disconnecting client.
	view := s.chart.Select(context.WithoutCancel(r.Context()), asset)
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.session != nil && !s.session.Active() {
		s.writeError(w, http.StatusConflict, "no active session")
		return
	}
	s.refresher.RefreshNow()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	active := s.session != nil && s.session.Active()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"session_active": active,
		"loading":        s.quotes.Loading(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
