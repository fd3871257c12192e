// Package telemetry exposes Prometheus metrics for the monitoring engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts events accepted into the store.
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_sentinel_events_ingested_total",
			Help: "Total number of security events persisted, by severity",
		},
		[]string{"severity"},
	)

	// AlertsDispatched counts alerts handed to the dispatcher.
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_sentinel_alerts_dispatched_total",
			Help: "Total number of alerts dispatched, by alert type",
		},
		[]string{"alert_type"},
	)

	// SideEffectFailures counts best-effort failures suppressed after a
	// successful event write (threshold, escalation, dispatch).
	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_sentinel_side_effect_failures_total",
			Help: "Total number of suppressed post-persist side effect failures, by stage",
		},
		[]string{"stage"},
	)

	// PatternScans counts pattern detector invocations.
	PatternScans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cad_sentinel_pattern_scans_total",
			Help: "Total number of suspicious pattern scans",
		},
	)

	// PatternMatches counts patterns flagged by the detector.
	PatternMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_sentinel_pattern_matches_total",
			Help: "Total number of suspicious patterns detected, by pattern type",
		},
		[]string{"pattern_type"},
	)

	// IngestLatency tracks the primary event write latency.
	IngestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cad_sentinel_ingest_latency_seconds",
			Help:    "Latency of the primary event persist path",
			Buckets: prometheus.DefBuckets,
		},
	)
)
