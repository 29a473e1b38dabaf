// Package metrics provides Prometheus instrumentation for the pairchat
// server. Pool and room sizes are exposed as gauge functions over the
// coordinator's derived snapshot reads; everything else is counters and
// histograms incremented at the point of the event.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// MatchesTotal counts successful pairings since process start.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_matches_total",
		Help: "Total number of successful pairings",
	})

	// MatchTimeoutsTotal counts waits that expired without a partner.
	MatchTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_match_timeouts_total",
		Help: "Total number of match waits that timed out",
	})

	// MatchWaitSeconds records the time each participant spent waiting before
	// being paired.
	MatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pairchat_match_wait_seconds",
		Help:    "Time from match request to pairing",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 300, 900, 1800},
	})

	// MessagesTotal counts messages processed, labeled by outcome:
	// "relayed", "rejected", or "rate_limited".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MatchesTotal,
		MatchTimeoutsTotal,
		MatchWaitSeconds,
		MessagesTotal,
	)
}

// RegisterCoordinatorGauges registers gauge functions for the waiting-pool
// size and active room count. The callbacks are invoked at scrape time, so
// the values are always a derived read of the coordinator's current state.
func RegisterCoordinatorGauges(waiting, rooms func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pairchat_waiting_users",
		Help: "Current number of users in the waiting pool",
	}, func() float64 { return float64(waiting()) }))

	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pairchat_active_rooms",
		Help: "Current number of active chat rooms",
	}, func() float64 { return float64(rooms()) }))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
