// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package connect

import (
	"net/url"
	"strings"
)

// NormalizeAddress turns operator- or discovery-supplied input into a
// canonical scheme-qualified base URL: a bare host gains the http
// scheme, default ports are stripped, and trailing slashes are removed.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimSuffix(address, "/")
	if address == "" {
		return ""
	}

	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	parsed, err := url.Parse(address)
	if err != nil {
		return address
	}

	host := parsed.Host
	switch {
	case parsed.Scheme == "http" && strings.HasSuffix(host, ":80"):
		parsed.Host = strings.TrimSuffix(host, ":80")
	case parsed.Scheme == "https" && strings.HasSuffix(host, ":443"):
		parsed.Host = strings.TrimSuffix(host, ":443")
	}

	return strings.TrimSuffix(parsed.String(), "/")
}
