// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

// Package timesync estimates the clock offset and network latency to the
// server from repeated round-trip probes, NTP-style: the measurement
// with the lowest round-trip delay across a rolling window is the most
// trustworthy, since low delay means low jitter.
package timesync

import "time"

// Measurement captures the four timestamps of one probe round trip.
// It is immutable once constructed.
type Measurement struct {
	// RequestSent and ResponseReceived are local clock readings.
	RequestSent      time.Time
	ResponseReceived time.Time

	// RequestReceived and ResponseSent are server clock readings.
	RequestReceived time.Time
	ResponseSent    time.Time
}

// Offset is the estimated difference between the server clock and the
// local clock; add it to a local time to get server time.
func (m Measurement) Offset() time.Duration {
	return (m.RequestReceived.Sub(m.RequestSent) + m.ResponseSent.Sub(m.ResponseReceived)) / 2
}

// Delay is the estimated round-trip network delay, excluding server
// processing time.
func (m Measurement) Delay() time.Duration {
	return m.ResponseReceived.Sub(m.RequestSent) - m.ResponseSent.Sub(m.RequestReceived)
}

// Ping is the estimated one-way latency.
func (m Measurement) Ping() time.Duration {
	return m.Delay() / 2
}
