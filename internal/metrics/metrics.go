// Package metrics exposes engine and transport counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tycoon.ai/internal/persistence/savegame"
	"tycoon.ai/internal/sim/game"
)

type EngineSource interface {
	Metrics() game.Metrics
}

type SaveSource interface {
	Stats() savegame.WriterStats
}

type LedgerSource interface {
	Written() uint64
	Dropped() uint64
}

// Sources feed the collectors. Save and Ledger are optional.
type Sources struct {
	Engine EngineSource
	Save   SaveSource
	Ledger LedgerSource
}

type Registry struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	actsTotal       *prometheus.CounterVec
	wsClients       prometheus.Gauge
}

func New(src Sources) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycoon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tycoon_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		actsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycoon_acts_total",
				Help: "Player actions received, by action and result code",
			},
			[]string{"action", "code"},
		),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tycoon_ws_clients",
			Help: "Connected websocket clients",
		}),
	}
	r.reg.MustRegister(r.requestsTotal, r.requestDuration, r.actsTotal, r.wsClients)

	if e := src.Engine; e != nil {
		gauge := func(name, help string, f func(m game.Metrics) float64) {
			r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help},
				func() float64 { return f(e.Metrics()) }))
		}
		counter := func(name, help string, f func(m game.Metrics) float64) {
			r.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
				func() float64 { return f(e.Metrics()) }))
		}
		gauge("tycoon_tick", "Engine tick counter", func(m game.Metrics) float64 { return float64(m.Tick) })
		gauge("tycoon_money", "Wallet balance", func(m game.Metrics) float64 { return m.Money })
		gauge("tycoon_offline_earnings_pending", "Uncollected offline earnings", func(m game.Metrics) float64 { return m.OfflineEarnings })
		gauge("tycoon_businesses_unlocked", "Unlocked businesses", func(m game.Metrics) float64 { return float64(m.UnlockedBusinesses) })
		gauge("tycoon_businesses_working", "Businesses with a running cycle", func(m game.Metrics) float64 { return float64(m.WorkingBusinesses) })
		gauge("tycoon_managers_hired", "Hired managers", func(m game.Metrics) float64 { return float64(m.HiredManagers) })
		gauge("tycoon_observers", "Engine change subscribers", func(m game.Metrics) float64 { return float64(m.Observers) })
		gauge("tycoon_inbox_depth", "Queued engine requests", func(m game.Metrics) float64 { return float64(m.InboxDepth) })
		gauge("tycoon_step_ms", "Duration of the last tick in milliseconds", func(m game.Metrics) float64 { return m.StepMS })
		counter("tycoon_cycles_completed_total", "Work cycles credited", func(m game.Metrics) float64 { return float64(m.CyclesCompleted) })
		counter("tycoon_refused_total", "Refused operations", func(m game.Metrics) float64 { return float64(m.Refused) })
		counter("tycoon_earned_total", "Money credited", func(m game.Metrics) float64 { return m.EarnedTotal })
		counter("tycoon_spent_total", "Money debited", func(m game.Metrics) float64 { return m.SpentTotal })
		counter("tycoon_saves_requested_total", "Snapshots handed to the save writer", func(m game.Metrics) float64 { return float64(m.SavesRequested) })
	}
	if s := src.Save; s != nil {
		r.reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{Name: "tycoon_saves_written_total", Help: "Snapshots written"},
				func() float64 { return float64(s.Stats().Saved) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{Name: "tycoon_saves_failed_total", Help: "Snapshot writes that failed"},
				func() float64 { return float64(s.Stats().Failed) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{Name: "tycoon_saves_coalesced_total", Help: "Snapshots replaced before being written"},
				func() float64 { return float64(s.Stats().Coalesced) }),
		)
	}
	if l := src.Ledger; l != nil {
		r.reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{Name: "tycoon_ledger_written_total", Help: "Ledger entries written"},
				func() float64 { return float64(l.Written()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{Name: "tycoon_ledger_dropped_total", Help: "Ledger entries dropped"},
				func() float64 { return float64(l.Dropped()) }),
		)
	}
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveAct(action, code string) {
	if code == "" {
		code = "OK"
	}
	r.actsTotal.WithLabelValues(action, code).Inc()
}

func (r *Registry) ClientConnected()    { r.wsClients.Inc() }
func (r *Registry) ClientDisconnected() { r.wsClients.Dec() }

// Instrument records request count and latency under a fixed route label.
func (r *Registry) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)
		r.requestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(sw.status)).Inc()
		r.requestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
