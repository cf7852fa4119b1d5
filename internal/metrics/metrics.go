// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request pipeline metrics

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellybridge_http_requests_total",
			Help: "Total number of HTTP requests by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: success, server_unreachable, read_timeout, unauthorized, access_restricted, missing_schema, http_error
	)

	HTTPRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellybridge_http_retries_total",
			Help: "Total number of HTTP attempt retries after transient failures",
		},
	)

	HTTPRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jellybridge_http_request_duration_seconds",
			Help:    "Duration of completed HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jellybridge_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellybridge_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellybridge_circuit_breaker_requests_total",
			Help: "Total number of requests seen by the circuit breaker by result",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	// WebSocket transport metrics

	WSConnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellybridge_ws_connects_total",
			Help: "Total number of successful websocket connections",
		},
	)

	WSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellybridge_ws_messages_total",
			Help: "Total number of inbound websocket messages by type",
		},
		[]string{"type"},
	)

	WSMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellybridge_ws_messages_deduplicated_total",
			Help: "Total number of inbound websocket messages dropped as duplicates",
		},
	)

	WSErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellybridge_ws_errors_total",
			Help: "Total number of websocket read/write errors",
		},
	)

	// Time sync metrics

	TimesyncOffset = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jellybridge_timesync_offset_seconds",
			Help: "Current estimated clock offset to the server in seconds",
		},
	)

	TimesyncPing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jellybridge_timesync_ping_seconds",
			Help: "Current estimated one-way network latency in seconds",
		},
	)

	TimesyncProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellybridge_timesync_probes_total",
			Help: "Total number of time sync probes by outcome",
		},
		[]string{"outcome"}, // outcome: success, failure
	)
)
