// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package timesync

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/jellybridge/internal/logging"
	"github.com/tomtom215/jellybridge/internal/metrics"
	"github.com/tomtom215/jellybridge/rest"
)

const (
	// windowSize bounds the measurement window; the oldest entry is
	// evicted first.
	windowSize = 8

	// greedyProbeCount is how many successful probes run at the greedy
	// interval before the loop settles into low-profile polling.
	greedyProbeCount = 3

	greedyInterval     = time.Second
	lowProfileInterval = 60 * time.Second
)

// Subscriber is notified with the current (offset, ping) after every
// successful probe.
type Subscriber func(offset, ping time.Duration)

// utcTimeResponse is the GetUTCTime endpoint's response envelope.
type utcTimeResponse struct {
	RequestReceptionTime     string `json:"RequestReceptionTime"`
	ResponseTransmissionTime string `json:"ResponseTransmissionTime"`
}

// probeFunc performs one round trip, swapped out in tests.
type probeFunc func(ctx context.Context) (Measurement, error)

// Estimator runs the probe loop as a supervised service and serves the
// current best offset/ping estimate.
type Estimator struct {
	probe probeFunc

	// Greedy and LowProfile override the polling intervals; zero values
	// fall back to the defaults. Set before Serve starts.
	Greedy     time.Duration
	LowProfile time.Duration

	mu          sync.Mutex
	window      []Measurement
	best        *Measurement
	probes      int
	greedy      bool
	subscribers []Subscriber

	// reset wakes the loop out of a low-profile sleep on ForceUpdate.
	reset chan struct{}
}

// NewEstimator builds an estimator probing through the request pipeline.
func NewEstimator(client *rest.Client) *Estimator {
	e := newEstimator()
	e.probe = func(ctx context.Context) (Measurement, error) {
		requestSent := time.Now().UTC()

		var resp utcTimeResponse
		if err := client.DoJSON(ctx, rest.Request{
			Path:    "GetUTCTime",
			Retries: rest.NoRetries,
		}, &resp); err != nil {
			return Measurement{}, err
		}

		responseReceived := time.Now().UTC()

		requestReceived, err := parsePreciseTime(resp.RequestReceptionTime)
		if err != nil {
			return Measurement{}, err
		}
		responseSent, err := parsePreciseTime(resp.ResponseTransmissionTime)
		if err != nil {
			return Measurement{}, err
		}

		return Measurement{
			RequestSent:      requestSent,
			RequestReceived:  requestReceived,
			ResponseSent:     responseSent,
			ResponseReceived: responseReceived,
		}, nil
	}
	return e
}

func newEstimator() *Estimator {
	return &Estimator{
		greedy: true,
		reset:  make(chan struct{}, 1),
	}
}

// Serve implements suture.Service: one probe per polling interval until
// the context is canceled.
func (e *Estimator) Serve(ctx context.Context) error {
	logging.Debug().Msg("time sync loop starting")

	for {
		timer := time.NewTimer(e.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-e.reset:
			timer.Stop()
			continue
		case <-timer.C:
		}

		measurement, err := e.probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.TimesyncProbes.WithLabelValues("failure").Inc()
			logging.Warn().Err(err).Msg("time sync probe failed")
			continue
		}
		metrics.TimesyncProbes.WithLabelValues("success").Inc()

		e.Record(measurement)
		e.notify()
	}
}

// String implements fmt.Stringer for supervision logs.
func (e *Estimator) String() string {
	return "timesync-estimator"
}

// interval returns the current polling interval.
func (e *Estimator) interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	greedy, low := e.Greedy, e.LowProfile
	if greedy <= 0 {
		greedy = greedyInterval
	}
	if low <= 0 {
		low = lowProfileInterval
	}
	if e.greedy {
		return greedy
	}
	return low
}

// Record appends a measurement to the window, evicting the oldest entry
// past capacity, and reselects the minimum-delay measurement as current.
func (e *Estimator) Record(m Measurement) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window = append(e.window, m)
	if len(e.window) > windowSize {
		e.window = e.window[1:]
	}

	best := e.window[0]
	for _, candidate := range e.window[1:] {
		if candidate.Delay() < best.Delay() {
			best = candidate
		}
	}
	e.best = &best

	if e.probes >= greedyProbeCount {
		e.greedy = false
	} else {
		e.probes++
	}

	metrics.TimesyncOffset.Set(best.Offset().Seconds())
	metrics.TimesyncPing.Set(best.Ping().Seconds())
}

// IsReady reports whether at least one measurement has been taken.
func (e *Estimator) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.best != nil
}

// Offset returns the current best offset estimate, zero before the
// first probe.
func (e *Estimator) Offset() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.best == nil {
		return 0
	}
	return e.best.Offset()
}

// Ping returns the current best one-way latency estimate, zero before
// the first probe.
func (e *Estimator) Ping() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.best == nil {
		return 0
	}
	return e.best.Ping()
}

// ForceUpdate discards accumulated state and drops back to greedy
// polling, used after reconnects or detected clock jumps.
func (e *Estimator) ForceUpdate() {
	e.mu.Lock()
	e.window = nil
	e.best = nil
	e.probes = 0
	e.greedy = true
	e.mu.Unlock()

	select {
	case e.reset <- struct{}{}:
	default:
	}

	logging.Debug().Msg("time sync reset to greedy polling")
}

// Subscribe registers a callback for offset updates.
func (e *Estimator) Subscribe(fn Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// notify delivers the current estimate to every subscriber. A panicking
// subscriber is logged and skipped; it cannot abort the loop or starve
// the other subscribers.
func (e *Estimator) notify() {
	e.mu.Lock()
	offset, ping := time.Duration(0), time.Duration(0)
	if e.best != nil {
		offset, ping = e.best.Offset(), e.best.Ping()
	}
	subscribers := make([]Subscriber, len(e.subscribers))
	copy(subscribers, e.subscribers)
	e.mu.Unlock()

	for _, fn := range subscribers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error().Interface("panic", r).
						Msg("time sync subscriber panicked")
				}
			}()
			fn(offset, ping)
		}()
	}
}

// ServerDateToLocal converts a server timestamp to local time.
func (e *Estimator) ServerDateToLocal(t time.Time) time.Time {
	return t.Add(-e.Offset())
}

// LocalDateToServer converts a local timestamp to server time.
func (e *Estimator) LocalDateToServer(t time.Time) time.Time {
	return t.Add(e.Offset())
}

// parsePreciseTime parses the server's high-precision UTC timestamps,
// which carry seven fractional digits.
func parsePreciseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05Z", s)
}
