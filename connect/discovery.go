// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package connect

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jellybridge/credentials"
	"github.com/tomtom215/jellybridge/internal/logging"
)

const (
	// discoveryMessage is the fixed identification payload servers
	// answer to.
	discoveryMessage = "who is JellyfinServer?"

	discoveryPort   = 7359
	discoveryWindow = time.Second
)

// discoveryReply is one UDP response frame.
type discoveryReply struct {
	ID              string `json:"Id"`
	Name            string `json:"Name"`
	Address         string `json:"Address"`
	EndpointAddress string `json:"EndpointAddress"`
}

// Discoverer finds servers on the local subnet via UDP broadcast.
// The zero value broadcasts to the local network; tests point Target at
// a loopback listener.
type Discoverer struct {
	// Target overrides the broadcast destination.
	Target string

	// Window overrides the reply collection window.
	Window time.Duration
}

// Discover broadcasts the identification message and collects replies
// until the window closes or ctx expires, whichever is sooner. Network
// errors are non-fatal: discovery is advisory, so any failure yields an
// empty result.
func (d *Discoverer) Discover(ctx context.Context) []credentials.ServerRecord {
	target := d.Target
	if target == "" {
		target = net.JoinHostPort("255.255.255.255", strconv.Itoa(discoveryPort))
	}
	window := d.Window
	if window <= 0 {
		window = discoveryWindow
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		logging.Warn().Err(err).Msg("discovery socket unavailable")
		return nil
	}
	defer func() { _ = conn.Close() }()

	dest, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		logging.Warn().Err(err).Str("target", target).Msg("bad discovery target")
		return nil
	}

	if _, err := conn.WriteTo([]byte(discoveryMessage), dest); err != nil {
		logging.Warn().Err(err).Msg("discovery broadcast failed")
		return nil
	}

	deadline := time.Now().Add(window)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetReadDeadline(deadline)

	var servers []credentials.ServerRecord
	buf := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			// Deadline expiry is the normal end of the window.
			if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
				logging.Warn().Err(err).Msg("discovery read failed")
			}
			break
		}

		var reply discoveryReply
		if err := json.Unmarshal(buf[:n], &reply); err != nil {
			logging.Debug().Err(err).Str("from", addr.String()).
				Msg("ignoring malformed discovery reply")
			continue
		}
		if reply.ID == "" {
			continue
		}

		servers = append(servers, reply.toRecord())
	}

	logging.Info().Int("count", len(servers)).Msg("server discovery finished")
	return servers
}

// toRecord converts a reply into a server record with a normalized
// address: the endpoint host combined with the advertised port when
// both are present, else the advertised address as-is.
func (r discoveryReply) toRecord() credentials.ServerRecord {
	address := r.manualAddress()
	if address == "" {
		address = NormalizeAddress(r.Address)
	}
	return credentials.ServerRecord{
		ID:      r.ID,
		Name:    r.Name,
		Address: address,
	}
}

// manualAddress prefers the endpoint host (how the server actually saw
// us connect, which matters behind container port mappings) joined with
// the port the server advertises.
func (r discoveryReply) manualAddress() string {
	if r.Address == "" || r.EndpointAddress == "" {
		return ""
	}

	host := r.EndpointAddress
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}

	parts := strings.Split(r.Address, ":")
	if len(parts) < 2 {
		return ""
	}
	port, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return ""
	}

	return NormalizeAddress(host + ":" + strconv.Itoa(port))
}
