// Package metrics registers the Prometheus collectors exported by the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_events_total", Help: "Feed events delivered by the synchronizer"},
		[]string{"source", "kind"},
	)
	DroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_dropped_total", Help: "Feed events dropped before reaching the engine"},
		[]string{"source", "reason"},
	)
	StaleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_stale_transitions_total", Help: "Stale/fresh transitions per source"},
		[]string{"source", "state"},
	)
	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_reconnects_total", Help: "Websocket reconnect attempts"},
		[]string{"source"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Controller decisions by outcome and reason"},
		[]string{"market", "outcome", "reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"market", "side"},
	)
	OrderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_failures_total", Help: "Orders rejected or timed out"},
		[]string{"market"},
	)
	Score = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "conviction_score", Help: "Latest 0-10 conviction score"},
		[]string{"market"},
	)
	DailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "daily_realized_pnl", Help: "Realized P&L for the current day"},
	)
	OpenNotional = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "open_notional", Help: "Open position notional per market"},
		[]string{"market"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal, DroppedTotal, StaleTransitions, Reconnects,
		DecisionsTotal, OrdersTotal, OrderFailures,
		Score, DailyPnL, OpenNotional,
	)
}

// Serve exposes /metrics plus any extra handlers on addr in a background goroutine.
func Serve(addr string, extra map[string]http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	for path, h := range extra {
		mux.Handle(path, h)
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
