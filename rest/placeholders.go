// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package rest

import (
	"strings"

	"github.com/tomtom215/jellybridge/internal/logging"
)

// Placeholders carries the session values substituted for the reserved
// tokens {server}, {UserId} and {DeviceId} in URLs and parameters.
type Placeholders struct {
	Server   string
	UserID   string
	DeviceID string
}

var placeholderTokens = []string{"{server}", "{UserId}", "{DeviceId}"}

func (p Placeholders) valueFor(token string) (string, bool) {
	switch token {
	case "{server}":
		return p.Server, p.Server != ""
	case "{UserId}":
		return p.UserID, p.UserID != ""
	case "{DeviceId}":
		return p.DeviceID, p.DeviceID != ""
	default:
		return "", false
	}
}

// ExpandString replaces every reserved token in s with its configured
// value. Tokens without a configured value are left in place and logged
// at debug level; an unresolved token is never fatal.
func (p Placeholders) ExpandString(s string) string {
	for _, token := range placeholderTokens {
		if !strings.Contains(s, token) {
			continue
		}
		value, ok := p.valueFor(token)
		if !ok {
			logging.Debug().Str("token", token).Str("input", s).
				Msg("placeholder has no configured value, left unresolved")
			continue
		}
		s = strings.ReplaceAll(s, token, value)
	}
	return s
}

// ExpandValue walks a tagged value by recursive descent and expands
// every string it contains, including strings nested inside lists and
// objects. Object keys are never expanded.
func (p Placeholders) ExpandValue(v Value) Value {
	switch v.kind {
	case KindString:
		return String(p.ExpandString(v.str))
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = p.ExpandValue(item)
		}
		return Value{kind: KindList, list: items}
	default:
		members := make([]Member, len(v.obj))
		for i, m := range v.obj {
			members[i] = Member{Key: m.Key, Value: p.ExpandValue(m.Value)}
		}
		return Value{kind: KindObject, obj: members}
	}
}
