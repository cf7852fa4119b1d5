// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package rest

import "testing"

func TestExpandString(t *testing.T) {
	ph := Placeholders{
		Server:   "https://example.com",
		UserID:   "user-1",
		DeviceID: "device-1",
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no tokens", "Items/1234", "Items/1234"},
		{"server token", "{server}/Items", "https://example.com/Items"},
		{"user token", "Users/{UserId}/Items", "Users/user-1/Items"},
		{"device token", "Sessions?device={DeviceId}", "Sessions?device=device-1"},
		{"repeated token", "{UserId}/{UserId}", "user-1/user-1"},
		{"all tokens", "{server}/Users/{UserId}/{DeviceId}", "https://example.com/Users/user-1/device-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ph.ExpandString(tt.input)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExpandStringUnsetTokenLeftInPlace(t *testing.T) {
	ph := Placeholders{Server: "https://example.com"}

	got := ph.ExpandString("Users/{UserId}/Items")
	if got != "Users/{UserId}/Items" {
		t.Errorf("unset token should stay unresolved, got %q", got)
	}
}

func TestExpandValueRecursesNestedStructures(t *testing.T) {
	ph := Placeholders{UserID: "user-1", DeviceID: "device-1"}

	params := Object(
		Field("UserId", "{UserId}"),
		Member{Key: "Filters", Value: List(String("{DeviceId}"), String("plain"))},
		Member{Key: "Nested", Value: Object(Field("Inner", "owner is {UserId}"))},
	)

	expanded := ph.ExpandValue(params)

	userID, _ := expanded.Get("UserId")
	if userID.Str() != "user-1" {
		t.Errorf("top-level string: expected %q, got %q", "user-1", userID.Str())
	}

	filters, _ := expanded.Get("Filters")
	if got := filters.queryValue(); got != "device-1,plain" {
		t.Errorf("list values: expected %q, got %q", "device-1,plain", got)
	}

	nested, _ := expanded.Get("Nested")
	inner, _ := nested.Get("Inner")
	if inner.Str() != "owner is user-1" {
		t.Errorf("nested object: expected %q, got %q", "owner is user-1", inner.Str())
	}
}

func TestExpandValueDoesNotTouchKeys(t *testing.T) {
	ph := Placeholders{UserID: "user-1"}

	expanded := ph.ExpandValue(Object(Field("{UserId}", "value")))
	if _, ok := expanded.Get("{UserId}"); !ok {
		t.Error("object keys must not be expanded")
	}
}

func TestValueJSONShape(t *testing.T) {
	v := Object(
		Field("Name", "demo"),
		Member{Key: "Tags", Value: List(String("a"), String("b"))},
	)

	raw, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Name":"demo","Tags":["a","b"]}`
	if string(raw) != want {
		t.Errorf("expected %s, got %s", want, raw)
	}
}
