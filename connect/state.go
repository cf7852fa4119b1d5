// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

// Package connect implements the connection negotiator: server
// discovery, reachability probing, redirect resolution, login, and
// token validation, driving the credential store as servers are seen.
package connect

import (
	"errors"

	"github.com/tomtom215/jellybridge/credentials"
)

// State is the outcome of one negotiation step. States are ordered by
// progress; SignedIn is terminal for a successful attempt.
type State int

const (
	// Unavailable: the candidate server could not be reached or a stored
	// token failed validation.
	Unavailable State = iota

	// ServerSelection: more input is needed, the caller must pick a
	// server.
	ServerSelection

	// ServerSignIn: the server is reachable but no valid token is held.
	ServerSignIn

	// SignedIn: the server is reachable and a valid token is bound.
	SignedIn
)

// String returns the wire-style state name.
func (s State) String() string {
	switch s {
	case Unavailable:
		return "Unavailable"
	case ServerSelection:
		return "ServerSelection"
	case ServerSignIn:
		return "ServerSignIn"
	case SignedIn:
		return "SignedIn"
	default:
		return "Unknown"
	}
}

// Result carries the negotiation outcome. Server is set for ServerSignIn
// and SignedIn; Servers is set for ServerSelection so the caller can
// present a picker.
type Result struct {
	State   State
	Server  *credentials.ServerRecord
	Servers []credentials.ServerRecord
}

// ErrLoginFailed reports rejected credentials, distinguishable from
// transport errors which surface as rest pipeline failures.
var ErrLoginFailed = errors.New("connect: login failed")
