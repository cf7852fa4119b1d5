// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

/*
Package metrics defines the Prometheus metrics exported by the client.

All metrics register on the default registry via promauto; an embedding
application exposes them by serving promhttp.Handler():

	import "github.com/prometheus/client_golang/prometheus/promhttp"

	http.Handle("/metrics", promhttp.Handler())

# Available Metrics

HTTP request pipeline:
  - jellybridge_http_requests_total: Requests by method and outcome (counter)
    Labels: method, outcome (success, server_unreachable, read_timeout,
    unauthorized, access_restricted, missing_schema, http_error)
  - jellybridge_http_retries_total: Attempt retries after transient failures (counter)
  - jellybridge_http_request_duration_seconds: Completed request latency (histogram)

Circuit breaker:
  - jellybridge_circuit_breaker_state: Current state (gauge)
    Values: 0=closed, 1=half-open, 2=open
  - jellybridge_circuit_breaker_transitions_total: State transitions (counter)
    Labels: name, from, to
  - jellybridge_circuit_breaker_requests_total: Requests by result (counter)
    Labels: name, result (success, failure, rejected)

WebSocket transport:
  - jellybridge_ws_connects_total: Successful connections (counter)
  - jellybridge_ws_messages_total: Inbound messages by type (counter)
  - jellybridge_ws_messages_deduplicated_total: Duplicate frames dropped (counter)
  - jellybridge_ws_errors_total: Read/write/dial errors (counter)

Time sync:
  - jellybridge_timesync_offset_seconds: Estimated clock offset (gauge)
  - jellybridge_timesync_ping_seconds: Estimated one-way latency (gauge)
  - jellybridge_timesync_probes_total: Probes by outcome (counter)

# Cardinality

Label values are drawn from small fixed sets: HTTP outcomes and breaker
results are predefined constants, and websocket message types come from
the server's bounded message vocabulary. No per-user or per-item labels
are recorded.

# Thread Safety

All metrics are safe for concurrent use; the Prometheus client library
handles synchronization internally.
*/
package metrics
