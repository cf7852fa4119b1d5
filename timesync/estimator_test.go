// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package timesync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// measurementWithDelay builds a measurement whose Delay() equals d:
// zero server processing time, so the delay is the full round trip.
func measurementWithDelay(d time.Duration) Measurement {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Measurement{
		RequestSent:      base,
		RequestReceived:  base,
		ResponseSent:     base,
		ResponseReceived: base.Add(d),
	}
}

func TestMeasurementMath(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Measurement{
		RequestSent:      base,
		RequestReceived:  base.Add(110 * time.Millisecond), // server 100ms ahead, 10ms transit
		ResponseSent:     base.Add(130 * time.Millisecond), // 20ms processing
		ResponseReceived: base.Add(40 * time.Millisecond),  // 10ms transit back
	}

	if got := m.Offset(); got != 100*time.Millisecond {
		t.Errorf("offset: expected 100ms, got %v", got)
	}
	if got := m.Delay(); got != 20*time.Millisecond {
		t.Errorf("delay: expected 20ms, got %v", got)
	}
	if got := m.Ping(); got != 10*time.Millisecond {
		t.Errorf("ping: expected 10ms, got %v", got)
	}
}

func TestMinimumDelaySelection(t *testing.T) {
	e := newEstimator()

	for _, d := range []int{5, 3, 8, 1, 9, 2, 7, 4} {
		e.Record(measurementWithDelay(time.Duration(d) * time.Millisecond))
	}

	if !e.IsReady() {
		t.Fatal("estimator should be ready after 8 measurements")
	}
	if got := e.best.Delay(); got != time.Millisecond {
		t.Errorf("expected minimum delay 1ms selected, got %v", got)
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	e := newEstimator()

	// The first measurement has the minimum delay; the 9th evicts it.
	delays := []int{1, 5, 3, 8, 9, 2, 7, 4}
	for _, d := range delays {
		e.Record(measurementWithDelay(time.Duration(d) * time.Millisecond))
	}
	if got := e.best.Delay(); got != time.Millisecond {
		t.Fatalf("expected 1ms best before eviction, got %v", got)
	}

	e.Record(measurementWithDelay(6 * time.Millisecond))

	if len(e.window) != windowSize {
		t.Errorf("window size: expected %d, got %d", windowSize, len(e.window))
	}
	if got := e.best.Delay(); got != 2*time.Millisecond {
		t.Errorf("expected new minimum 2ms after eviction, got %v", got)
	}
}

func TestOffsetConversions(t *testing.T) {
	e := newEstimator()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.Record(Measurement{
		RequestSent:      base,
		RequestReceived:  base.Add(time.Minute), // server one minute ahead
		ResponseSent:     base.Add(time.Minute),
		ResponseReceived: base,
	})

	local := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	if got := e.LocalDateToServer(local); !got.Equal(local.Add(time.Minute)) {
		t.Errorf("LocalDateToServer: expected +1m, got %v", got)
	}
	server := local.Add(time.Minute)
	if got := e.ServerDateToLocal(server); !got.Equal(local) {
		t.Errorf("ServerDateToLocal: expected %v, got %v", local, got)
	}
}

func TestForceUpdateResetsState(t *testing.T) {
	e := newEstimator()

	for i := 0; i < 5; i++ {
		e.Record(measurementWithDelay(time.Millisecond))
	}
	if e.greedy {
		t.Fatal("expected low-profile polling after greedy probes")
	}

	e.ForceUpdate()

	if e.IsReady() {
		t.Error("measurements should be discarded")
	}
	if !e.greedy {
		t.Error("polling should reset to greedy")
	}
	if e.Offset() != 0 {
		t.Error("offset should be zero after reset")
	}
}

func TestAdaptivePollingSwitch(t *testing.T) {
	e := newEstimator()
	e.Greedy = time.Millisecond
	e.LowProfile = time.Hour

	for i := 0; i <= greedyProbeCount; i++ {
		if got := e.interval(); got != time.Millisecond {
			t.Fatalf("probe %d: expected greedy interval, got %v", i, got)
		}
		e.Record(measurementWithDelay(time.Millisecond))
	}

	if got := e.interval(); got != time.Hour {
		t.Errorf("expected low-profile interval after %d probes, got %v", greedyProbeCount, got)
	}
}

func TestServeProbesAndNotifies(t *testing.T) {
	e := newEstimator()
	e.Greedy = time.Millisecond
	e.LowProfile = time.Millisecond

	var probes atomic.Int32
	e.probe = func(context.Context) (Measurement, error) {
		probes.Add(1)
		return measurementWithDelay(time.Millisecond), nil
	}

	var notified atomic.Int32
	e.Subscribe(func(offset, ping time.Duration) {
		notified.Add(1)
	})
	// A panicking subscriber must not break the loop or its peers.
	e.Subscribe(func(offset, ping time.Duration) {
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := e.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve: expected deadline error, got %v", err)
	}

	if probes.Load() == 0 {
		t.Error("expected at least one probe")
	}
	if notified.Load() != probes.Load() {
		t.Errorf("expected %d notifications, got %d", probes.Load(), notified.Load())
	}
}

func TestServeSurvivesProbeFailure(t *testing.T) {
	e := newEstimator()
	e.Greedy = time.Millisecond
	e.LowProfile = time.Millisecond

	var calls atomic.Int32
	e.probe = func(context.Context) (Measurement, error) {
		if calls.Add(1) == 1 {
			return Measurement{}, errors.New("probe failed")
		}
		return measurementWithDelay(time.Millisecond), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = e.Serve(ctx)

	if calls.Load() < 2 {
		t.Error("loop must continue past a failed probe")
	}
	if !e.IsReady() {
		t.Error("later probes should still land")
	}
}

func TestParsePreciseTime(t *testing.T) {
	got, err := parsePreciseTime("2026-03-01T12:00:00.1234567Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 123456700, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := parsePreciseTime("2026-03-01T12:00:00Z"); err != nil {
		t.Errorf("plain RFC3339 should parse, got %v", err)
	}
}
