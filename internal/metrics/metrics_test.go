// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPRequestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "success"))
	HTTPRequests.WithLabelValues("GET", "success").Inc()
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "success"))

	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test-breaker").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != 2 {
		t.Errorf("expected state 2, got %v", got)
	}

	CircuitBreakerState.WithLabelValues("test-breaker").Set(0)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != 0 {
		t.Errorf("expected state 0, got %v", got)
	}
}

func TestTimesyncGauges(t *testing.T) {
	TimesyncOffset.Set(0.25)
	TimesyncPing.Set(0.01)

	if got := testutil.ToFloat64(TimesyncOffset); got != 0.25 {
		t.Errorf("expected offset 0.25, got %v", got)
	}
	if got := testutil.ToFloat64(TimesyncPing); got != 0.01 {
		t.Errorf("expected ping 0.01, got %v", got)
	}
}

func TestWSMessageCountersByType(t *testing.T) {
	before := testutil.ToFloat64(WSMessages.WithLabelValues("Play"))
	WSMessages.WithLabelValues("Play").Inc()
	WSMessages.WithLabelValues("Play").Inc()

	if got := testutil.ToFloat64(WSMessages.WithLabelValues("Play")); got != before+2 {
		t.Errorf("expected +2 Play messages, got %v -> %v", before, got)
	}
}
