// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the telemetry pipeline:
// - Event bus throughput, suppression, and callback health
// - Validation runs and quality scores
// - Analysis engine runs and alert volume
// - Service lifecycle transitions
// - API endpoint latency and WebSocket connections

var (
	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "Total number of events published, by event type",
		},
		[]string{"event_type"},
	)

	EventsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_suppressed_total",
			Help: "Events recorded but not delivered (middleware nil or filter false)",
		},
		[]string{"event_type", "reason"}, // "middleware", "filter"
	)

	CallbackErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_callback_errors_total",
			Help: "Subscriber callbacks that panicked or timed out",
		},
		[]string{"event_type", "kind"}, // "panic", "timeout"
	)

	CallbackDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventbus_callback_duration_seconds",
			Help:    "Subscriber callback execution time in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"event_type"},
	)

	EventHistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventbus_history_size",
			Help: "Current number of events retained in bus history",
		},
	)

	BusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventbus_subscribers",
			Help: "Current number of registered subscribers",
		},
	)

	// Validation metrics
	ValidationRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_runs_total",
			Help: "Total number of validation runs",
		},
	)

	ValidationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_issues_total",
			Help: "Validation issues found, by severity",
		},
		[]string{"severity"},
	)

	ValidationScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "validation_quality_score",
			Help:    "Distribution of overall quality scores (0-100)",
			Buckets: []float64{0, 10, 25, 50, 70, 80, 90, 95, 99, 100},
		},
	)

	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "validation_duration_seconds",
			Help:    "Validation run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Analysis engine metrics
	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Analysis runs, by domain and status",
		},
		[]string{"domain", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Engine analysis duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain"},
	)

	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Alerts raised by engines and the validator, by level",
		},
		[]string{"domain", "level"},
	)

	AlertsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_throttled_total",
			Help: "Alerts dropped by the republication rate limiter",
		},
	)

	EngineBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_breaker_open",
			Help: "1 when the named engine circuit breaker is open",
		},
		[]string{"domain"},
	)

	// Service lifecycle metrics
	ServiceStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_starts_total",
			Help: "Service start attempts, by outcome",
		},
		[]string{"service", "outcome"}, // "ok", "failed", "dependency_not_ready"
	)

	ServicesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "services_running",
			Help: "Current number of services in the running state",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "WebSocket frames broadcast to clients, by message type",
		},
		[]string{"message_type"},
	)
)

// RecordEventPublished records one published event and the resulting
// history size.
func RecordEventPublished(eventType string, historySize int) {
	EventsPublished.WithLabelValues(eventType).Inc()
	EventHistorySize.Set(float64(historySize))
}

// RecordCallback records one subscriber callback invocation.
func RecordCallback(eventType string, duration time.Duration) {
	CallbackDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordValidation records the outcome of one validation run.
func RecordValidation(score float64, duration time.Duration) {
	ValidationRuns.Inc()
	ValidationScore.Observe(score)
	ValidationDuration.Observe(duration.Seconds())
}

// RecordAnalysis records the outcome of one engine analysis run.
func RecordAnalysis(domain, status string, duration time.Duration) {
	AnalysisRuns.WithLabelValues(domain, status).Inc()
	AnalysisDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordAlert records one raised alert.
func RecordAlert(domain, level string) {
	AlertsTriggered.WithLabelValues(domain, level).Inc()
}

// RecordAPIRequest records an API request with its outcome.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetBreakerOpen sets the open/closed gauge for an engine breaker.
func SetBreakerOpen(domain string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	EngineBreakerState.WithLabelValues(domain).Set(v)
}
