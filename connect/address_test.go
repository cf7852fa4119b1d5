// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package connect

import "testing"

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare host", "host", "http://host"},
		{"bare host with port", "host:8096", "http://host:8096"},
		{"default http port stripped", "http://host:80", "http://host"},
		{"default https port stripped", "https://host:443", "https://host"},
		{"non-default port kept", "https://host:8920", "https://host:8920"},
		{"trailing slash stripped", "http://host:8096/", "http://host:8096"},
		{"surrounding whitespace", "  host  ", "http://host"},
		{"already normalized", "https://demo.jellyfin.org", "https://demo.jellyfin.org"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAddress(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeAddress(%q): expected %q, got %q", tt.input, tt.want, got)
			}
		})
	}
}
