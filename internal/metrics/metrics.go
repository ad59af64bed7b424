// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the alerting pipeline:
// - Event bus throughput
// - Flow evaluation, firing and suppression
// - Action dispatch latency and outcome
// - History persistence
// - API and WebSocket surfaces

var (
	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_events_published_total",
			Help: "Total number of events published on the in-process bus",
		},
		[]string{"category"},
	)

	EventHandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshguard_event_handler_panics_total",
			Help: "Total number of recovered panics in bus handlers",
		},
	)

	// Engine Metrics
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshguard_evaluation_duration_seconds",
			Help:    "Time to evaluate one event against every enabled flow",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)

	FlowFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_flow_fires_total",
			Help: "Total number of flow firings that passed every gate",
		},
		[]string{"flow_id", "severity"},
	)

	FlowSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_flow_suppressed_total",
			Help: "Total number of flow firings suppressed by a gate",
		},
		[]string{"reason"}, // "cooldown", "queue_full"
	)

	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_evaluation_errors_total",
			Help: "Total number of node evaluation errors treated as failures",
		},
		[]string{"node_type", "subtype"},
	)

	StateResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_state_resets_total",
			Help: "Total number of corrupt state entries reset",
		},
		[]string{"table"},
	)

	TrackedObjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshguard_tracked_objects",
			Help: "Current number of objects held by the state tracker",
		},
	)

	RegistryFlows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meshguard_registry_flows",
			Help: "Flows in the active registry snapshot",
		},
		[]string{"state"}, // "enabled", "disabled", "rejected"
	)

	// Dispatch Metrics
	ActionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_actions_dispatched_total",
			Help: "Total number of action executions by type and outcome",
		},
		[]string{"action", "result"}, // result: "ok", "error", "timeout"
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshguard_action_duration_seconds",
			Help:    "Duration of action executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshguard_dispatch_queue_depth",
			Help: "Current number of firings waiting for a dispatch worker",
		},
	)

	// History Metrics
	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_history_writes_total",
			Help: "Total number of alert history writes by outcome",
		},
		[]string{"result"}, // "ok", "spooled", "error"
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshguard_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meshguard_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshguard_api_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshguard_websocket_connections_active",
			Help: "Current number of connected operator consoles",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshguard_websocket_messages_dropped_total",
			Help: "Total number of UI messages dropped because a buffer was full",
		},
	)

	// MMIP Metrics
	MMIPPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_mmip_published_total",
			Help: "Total number of MMIP envelopes published",
		},
		[]string{"type", "result"},
	)

	// MQTT Metrics
	MQTTConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshguard_mqtt_connected",
			Help: "1 while the MQTT client holds a broker connection",
		},
	)

	// Spool Metrics
	SpoolDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshguard_spool_pending",
			Help: "Alert records waiting in the spool for the database",
		},
	)

	SpoolReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_spool_replays_total",
			Help: "Spooled alert records replayed into the database",
		},
		[]string{"result"},
	)

	// Auth Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_login_attempts_total",
			Help: "Admin API login attempts by outcome",
		},
		[]string{"result"}, // "ok", "invalid", "locked"
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_authz_decisions_total",
			Help: "Authorization decisions by role, object, action and outcome",
		},
		[]string{"role", "object", "action", "decision"},
	)

	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_audit_events_total",
			Help: "Admin audit events by result",
		},
		[]string{"result"}, // "saved", "failed", "dropped"
	)

	// Ingest Metrics
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshguard_ingest_messages_total",
			Help: "Messages received from the external event stream",
		},
		[]string{"result"},
	)
)

// RecordEventPublished counts one bus publish.
func RecordEventPublished(category string) {
	if category == "" {
		category = "unknown"
	}
	EventsPublished.WithLabelValues(category).Inc()
}

// RecordEvaluation observes the duration of one event evaluation.
func RecordEvaluation(duration time.Duration) {
	EvaluationDuration.Observe(duration.Seconds())
}

// RecordFlowFire counts a firing that reached dispatch.
func RecordFlowFire(flowID, severity string) {
	FlowFires.WithLabelValues(flowID, severity).Inc()
}

// RecordSuppressed counts a firing blocked by a gate.
func RecordSuppressed(reason string) {
	FlowSuppressed.WithLabelValues(reason).Inc()
}

// RecordEvaluationError counts a node that failed to evaluate.
func RecordEvaluationError(nodeType, subtype string) {
	EvaluationErrors.WithLabelValues(nodeType, subtype).Inc()
}

// RecordStateReset counts a corrupt state entry that was reset.
func RecordStateReset(table string) {
	StateResets.WithLabelValues(table).Inc()
}

// RecordAction records the outcome and latency of one action.
func RecordAction(action, result string, duration time.Duration) {
	ActionsDispatched.WithLabelValues(action, result).Inc()
	ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordHistoryWrite counts a history write outcome.
func RecordHistoryWrite(result string) {
	HistoryWrites.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetRegistryFlows publishes the registry snapshot composition.
func SetRegistryFlows(enabled, disabled, rejected int) {
	RegistryFlows.WithLabelValues("enabled").Set(float64(enabled))
	RegistryFlows.WithLabelValues("disabled").Set(float64(disabled))
	RegistryFlows.WithLabelValues("rejected").Set(float64(rejected))
}

// RecordMMIP counts one MMIP publish attempt.
func RecordMMIP(msgType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	MMIPPublished.WithLabelValues(msgType, result).Inc()
}

// SetMQTTConnected publishes the broker connection state.
func SetMQTTConnected(connected bool) {
	if connected {
		MQTTConnected.Set(1)
		return
	}
	MQTTConnected.Set(0)
}

// RecordIngest counts one message from the external event stream.
func RecordIngest(result string) {
	IngestMessages.WithLabelValues(result).Inc()
}

// RecordLogin counts a login attempt outcome.
func RecordLogin(result string) {
	LoginAttempts.WithLabelValues(result).Inc()
}

// RecordAuthz counts an authorization decision.
func RecordAuthz(role, object, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	AuthzDecisions.WithLabelValues(role, object, action, decision).Inc()
}
