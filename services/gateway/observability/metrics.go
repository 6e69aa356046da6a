// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the compliance
// gateway. Metrics include:
//   - Redaction counters (by PHI kind, never by content)
//   - Chat request counters (by endpoint, status)
//   - Action plan lifecycle counters (created, confirmed, expired)
//   - Model backend latency histograms
//   - Active WebSocket gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "cascadia"

// Subsystem for gateway metrics
const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for the compliance gateway.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring redaction, chat,
// and action plan activity. Initialize once at startup via InitMetrics().
// Only counts and durations are recorded; message content and matched PHI
// text never reach a metric label.
//
// # Thread Safety
//
// All operations are thread-safe.
type GatewayMetrics struct {
	// RedactionsTotal counts PHI redactions by classifier kind.
	// Labels: kind (ssn, phone, email, mrn, dob, address, zip, name)
	RedactionsTotal *prometheus.CounterVec

	// ChatRequestsTotal counts chat requests by endpoint and status.
	// Labels: endpoint (chat, ws_chat), status (success, error)
	ChatRequestsTotal *prometheus.CounterVec

	// ToolRequestsTotal counts tool invocations by tool and status.
	// Labels: tool (web_search, file_search, browser_action), status
	ToolRequestsTotal *prometheus.CounterVec

	// PlansCreatedTotal counts action plans by sensitivity.
	// Labels: sensitive (true, false)
	PlansCreatedTotal *prometheus.CounterVec

	// PlanConfirmationsTotal counts confirmation outcomes.
	// Labels: outcome (confirmed, cancelled, expired, not_found)
	PlanConfirmationsTotal *prometheus.CounterVec

	// PlansExpiredTotal counts plans removed by the expiry sweeper.
	PlansExpiredTotal prometheus.Counter

	// ModelRequestSeconds measures model backend latency.
	// Labels: backend (ollama, openai, local), status (success, error)
	ModelRequestSeconds *prometheus.HistogramVec

	// DocumentsIndexedTotal counts documents added to the index.
	// Labels: source (api, ingest, seed)
	DocumentsIndexedTotal *prometheus.CounterVec

	// ActiveWebsockets tracks open WebSocket chat connections.
	ActiveWebsockets prometheus.Gauge
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		RedactionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "redactions_total",
				Help:      "Total PHI redactions by classifier kind",
			},
			[]string{"kind"},
		),

		ChatRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "chat_requests_total",
				Help:      "Total chat requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ToolRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "tool_requests_total",
				Help:      "Total tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),

		PlansCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "plans_created_total",
				Help:      "Total action plans created by sensitivity",
			},
			[]string{"sensitive"},
		),

		PlanConfirmationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "plan_confirmations_total",
				Help:      "Total plan confirmation outcomes",
			},
			[]string{"outcome"},
		),

		PlansExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "plans_expired_total",
				Help:      "Total plans removed after their confirmation window lapsed",
			},
		),

		ModelRequestSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "model_request_seconds",
				Help:      "Model backend request latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"backend", "status"},
		),

		DocumentsIndexedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "documents_indexed_total",
				Help:      "Total documents added to the index by source",
			},
			[]string{"source"},
		),

		ActiveWebsockets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_websockets",
				Help:      "Number of open WebSocket chat connections",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Confirmation Outcomes
// =============================================================================

// Outcome labels a plan confirmation result for metrics.
type Outcome string

const (
	// OutcomeConfirmed means the plan was confirmed and executed.
	OutcomeConfirmed Outcome = "confirmed"

	// OutcomeCancelled means the user declined the plan.
	OutcomeCancelled Outcome = "cancelled"

	// OutcomeExpired means the confirmation window lapsed first.
	OutcomeExpired Outcome = "expired"

	// OutcomeNotFound means the plan ID did not match a pending plan.
	OutcomeNotFound Outcome = "not_found"
)

// =============================================================================
// Document Sources
// =============================================================================

// Document source labels for DocumentsIndexedTotal. The set is fixed:
// free-form values such as document names would explode the series
// cardinality and could leak a PHI-bearing filename into /metrics.
const (
	// DocSourceAPI marks documents indexed through the documents endpoint.
	DocSourceAPI = "api"

	// DocSourceIngest marks documents picked up from the drop directory.
	DocSourceIngest = "ingest"

	// DocSourceSeed marks documents loaded at startup.
	DocSourceSeed = "seed"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRedactions adds per-kind redaction counts. kinds maps classifier
// kind to the number of matches in one message.
func (m *GatewayMetrics) RecordRedactions(kinds map[string]int) {
	for kind, n := range kinds {
		m.RedactionsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordChatRequest records a completed chat request.
func (m *GatewayMetrics) RecordChatRequest(endpoint string, success bool) {
	m.ChatRequestsTotal.WithLabelValues(endpoint, statusLabel(success)).Inc()
}

// RecordToolRequest records a completed tool invocation.
func (m *GatewayMetrics) RecordToolRequest(tool string, success bool) {
	m.ToolRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
}

// RecordPlanCreated records a new action plan.
func (m *GatewayMetrics) RecordPlanCreated(sensitive bool) {
	label := "false"
	if sensitive {
		label = "true"
	}
	m.PlansCreatedTotal.WithLabelValues(label).Inc()
}

// RecordConfirmation records a plan confirmation outcome.
func (m *GatewayMetrics) RecordConfirmation(outcome Outcome) {
	m.PlanConfirmationsTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordPlansExpired records plans removed by one sweeper pass.
func (m *GatewayMetrics) RecordPlansExpired(n int) {
	if n > 0 {
		m.PlansExpiredTotal.Add(float64(n))
	}
}

// RecordModelRequest records one model backend call.
func (m *GatewayMetrics) RecordModelRequest(backend string, seconds float64, success bool) {
	m.ModelRequestSeconds.WithLabelValues(backend, statusLabel(success)).Observe(seconds)
}

// RecordDocumentIndexed records one document added to the index. source
// must be one of the DocSource constants, never a caller-supplied name.
func (m *GatewayMetrics) RecordDocumentIndexed(source string) {
	m.DocumentsIndexedTotal.WithLabelValues(source).Inc()
}

// RecordDocumentsIndexed records a batch of documents added to the index.
func (m *GatewayMetrics) RecordDocumentsIndexed(source string, n int) {
	if n > 0 {
		m.DocumentsIndexedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// WebsocketOpened increments the active WebSocket gauge.
func (m *GatewayMetrics) WebsocketOpened() {
	m.ActiveWebsockets.Inc()
}

// WebsocketClosed decrements the active WebSocket gauge.
func (m *GatewayMetrics) WebsocketClosed() {
	m.ActiveWebsockets.Dec()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
