// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the watchdog service.
//
// # Description
//
// Metrics cover configuration churn (update batches by source and outcome,
// currently configured components) and the diagnostic resolution endpoint.
// Exposed via the /metrics endpoint; use with Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"

const watchdogSubsystem = "watchdog"

// UpdateSource labels where a configuration update batch came from.
type UpdateSource string

const (
	// SourceAPI marks updates pushed through the admin HTTP API.
	SourceAPI UpdateSource = "api"

	// SourceWatcher marks updates applied by the latest-file watcher.
	SourceWatcher UpdateSource = "watcher"
)

// WatchdogMetrics holds all Prometheus metrics for the watchdog service.
// Initialize once at startup via InitMetrics().
type WatchdogMetrics struct {
	// ConfigUpdatesTotal counts update batches by source and outcome.
	// Labels: source (api, watcher), status (success, error)
	ConfigUpdatesTotal *prometheus.CounterVec

	// ConfiguredComponents tracks how many components currently carry a
	// configuration (0 through 3).
	ConfiguredComponents prometheus.Gauge

	// ThresholdQueriesTotal counts diagnostic threshold resolutions.
	// Labels: component (SYSTEM, VENDOR, THIRD_PARTY)
	ThresholdQueriesTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of WatchdogMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *WatchdogMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *WatchdogMetrics {
	DefaultMetrics = &WatchdogMetrics{
		ConfigUpdatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: watchdogSubsystem,
				Name:      "config_updates_total",
				Help:      "Total resource overuse configuration update batches by source and status",
			},
			[]string{"source", "status"},
		),

		ConfiguredComponents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: watchdogSubsystem,
				Name:      "configured_components",
				Help:      "Number of components with a resource overuse configuration",
			},
		),

		ThresholdQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: watchdogSubsystem,
				Name:      "threshold_queries_total",
				Help:      "Total diagnostic threshold resolutions by component",
			},
			[]string{"component"},
		),
	}
	return DefaultMetrics
}

// RecordUpdate records a completed update batch.
func (m *WatchdogMetrics) RecordUpdate(source UpdateSource, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.ConfigUpdatesTotal.WithLabelValues(string(source), status).Inc()
}

// SetConfiguredComponents updates the configured-components gauge.
func (m *WatchdogMetrics) SetConfiguredComponents(n int) {
	if m == nil {
		return
	}
	m.ConfiguredComponents.Set(float64(n))
}

// RecordThresholdQuery records one diagnostic threshold resolution.
func (m *WatchdogMetrics) RecordThresholdQuery(component string) {
	if m == nil {
		return
	}
	m.ThresholdQueriesTotal.WithLabelValues(component).Inc()
}
