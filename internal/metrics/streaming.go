// SPDX-License-Identifier: MIT

// Package metrics exposes the relay's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// activeSessions tracks in-flight relay sessions per backend.
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ytrelay_active_sessions",
		Help: "Currently running relay sessions",
	}, []string{"backend"})

	// relayBytes counts bytes piped downstream.
	relayBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytrelay_relayed_bytes_total",
		Help: "Total bytes relayed to clients",
	}, []string{"backend"})

	// relayErrors counts failures by stage so mid-stream aborts are
	// distinguishable from resolution failures.
	relayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytrelay_errors_total",
		Help: "Relay failures by stage",
	}, []string{"backend", "stage"})

	// resolveDuration tracks manifest resolution latency.
	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytrelay_resolve_duration_seconds",
		Help:    "Time taken to resolve a format manifest",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
	}, []string{"backend", "cached"})
)

// IncActiveSessions marks a relay session as started.
func IncActiveSessions(backend string) {
	activeSessions.WithLabelValues(backend).Inc()
}

// DecActiveSessions marks a relay session as finished.
func DecActiveSessions(backend string) {
	activeSessions.WithLabelValues(backend).Dec()
}

// AddRelayedBytes records bytes delivered downstream.
func AddRelayedBytes(backend string, n int64) {
	if n > 0 {
		relayBytes.WithLabelValues(backend).Add(float64(n))
	}
}

// IncRelayError records a failure at the given stage
// ("resolve", "select", "open", "stream").
func IncRelayError(backend, stage string) {
	relayErrors.WithLabelValues(backend, stage).Inc()
}

// ObserveResolveDuration records manifest resolution latency.
func ObserveResolveDuration(backend string, cached bool, d time.Duration) {
	label := "miss"
	if cached {
		label = "hit"
	}
	resolveDuration.WithLabelValues(backend, label).Observe(d.Seconds())
}
