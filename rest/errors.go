// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package rest

import (
	"errors"
	"fmt"
)

// FailureKind classifies a definitive pipeline failure. The names double
// as the event names emitted through the client callback boundary.
type FailureKind string

const (
	// FailureServerUnreachable: connection-level failure after the retry
	// budget was exhausted.
	FailureServerUnreachable FailureKind = "ServerUnreachable"

	// FailureReadTimeout: read timed out after the retry budget was
	// exhausted.
	FailureReadTimeout FailureKind = "ReadTimeout"

	// FailureUnauthorized: 401 without an application error code header.
	// Raising it revokes the stored token as a side effect.
	FailureUnauthorized FailureKind = "Unauthorized"

	// FailureAccessRestricted: 401 carrying X-Application-Error-Code.
	FailureAccessRestricted FailureKind = "AccessRestricted"

	// FailureMissingSchema: the request URL is malformed.
	FailureMissingSchema FailureKind = "MissingSchema"

	// FailureHTTP: any other non-2xx, non-retried status.
	FailureHTTP FailureKind = "HTTPError"
)

// Error is the failure type produced by the request pipeline.
type Error struct {
	Kind   FailureKind
	Status int // HTTP status for FailureHTTP and the 401 kinds, else 0
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("rest: %s (status %d): %v", e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("rest: %s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("rest: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("rest: %s", e.Kind)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the FailureKind from err, or "" when err is not a
// pipeline failure.
func KindOf(err error) FailureKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
