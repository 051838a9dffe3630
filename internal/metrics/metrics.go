// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes Prometheus instrumentation for the orchestration
// core. Collectors are package-level and auto-registered; callers record
// through the helper functions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publicbridge_analyses_total",
		Help: "Report analyses performed, by resulting category.",
	}, []string{"category"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "publicbridge_analysis_duration_seconds",
		Help:    "End-to-end report analysis latency.",
		Buckets: prometheus.DefBuckets,
	})

	adapterDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publicbridge_adapter_degradations_total",
		Help: "Analyzer adapter failures absorbed by the ensemble.",
	}, []string{"analyzer"})

	routingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publicbridge_routing_decisions_total",
		Help: "Routing decisions, by assigned department.",
	}, []string{"department"})

	chatTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publicbridge_chat_turns_total",
		Help: "Chat turns handled.",
	})

	fallbackResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "publicbridge_fallback_responses_total",
		Help: "Fallback payloads substituted after a component failure.",
	}, []string{"operation"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "publicbridge_active_sessions",
		Help: "Currently active conversation sessions.",
	})

	expiredSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publicbridge_expired_sessions_total",
		Help: "Sessions expired by the inactivity sweeper.",
	})
)

// ObserveAnalysis records one completed report analysis.
func ObserveAnalysis(category string, elapsed time.Duration) {
	analysesTotal.WithLabelValues(category).Inc()
	analysisDuration.Observe(elapsed.Seconds())
}

// AdapterDegraded records one absorbed adapter failure.
func AdapterDegraded(analyzerID string) {
	adapterDegradations.WithLabelValues(analyzerID).Inc()
}

// RoutingDecision records one routing decision.
func RoutingDecision(departmentID string) {
	routingDecisions.WithLabelValues(departmentID).Inc()
}

// ChatTurn records one handled chat turn.
func ChatTurn() {
	chatTurns.Inc()
}

// FallbackResponse records one substituted fallback payload.
func FallbackResponse(operation string) {
	fallbackResponses.WithLabelValues(operation).Inc()
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// SessionsExpired records sessions removed by a sweep.
func SessionsExpired(n int) {
	if n > 0 {
		expiredSessions.Add(float64(n))
	}
}
