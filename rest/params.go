// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package rest

import (
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindObject
)

// Member is one key/value pair of an object Value. Insertion order is
// preserved through encoding.
type Member struct {
	Key   string
	Value Value
}

// Value is a tagged union over the shapes a request parameter can take:
// a string, an ordered list, or a string-keyed object. Placeholder
// expansion walks this structure by recursive descent instead of
// reflecting over arbitrary Go values.
type Value struct {
	kind Kind
	str  string
	list []Value
	obj  []Member
}

// String constructs a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// List constructs a list Value.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Object constructs an object Value from ordered members.
func Object(members ...Member) Value {
	return Value{kind: KindObject, obj: members}
}

// Field is a convenience constructor for an object member with a string
// value.
func Field(key, value string) Member {
	return Member{Key: key, Value: String(value)}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload (valid for KindString).
func (v Value) Str() string { return v.str }

// Members returns the object members (valid for KindObject).
func (v Value) Members() []Member { return v.obj }

// IsZero reports whether the value is the empty string Value, used to
// signal "no params"/"no body" on a Request.
func (v Value) IsZero() bool {
	return v.kind == KindString && v.str == "" && v.list == nil && v.obj == nil
}

// Set appends or replaces a member on an object Value and returns the
// updated value.
func (v Value) Set(key string, val Value) Value {
	if v.kind != KindObject {
		v = Object()
	}
	for i := range v.obj {
		if v.obj[i].Key == key {
			v.obj[i].Value = val
			return v
		}
	}
	v.obj = append(v.obj, Member{Key: key, Value: val})
	return v
}

// Get returns the member value for key on an object Value.
func (v Value) Get(key string) (Value, bool) {
	for i := range v.obj {
		if v.obj[i].Key == key {
			return v.obj[i].Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the value in its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	case KindObject:
		var b strings.Builder
		b.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(m.Value)
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')
			b.Write(val)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	default:
		return json.Marshal(v.str)
	}
}

// queryValue flattens a value for use in a URL query string: strings
// pass through, lists become comma-separated, and nested objects are
// JSON-encoded.
func (v Value) queryValue() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			parts = append(parts, item.queryValue())
		}
		return strings.Join(parts, ",")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// encodeQuery renders an object Value as a URL-encoded query string.
func encodeQuery(params Value) string {
	if params.IsZero() || params.kind != KindObject {
		return ""
	}
	q := url.Values{}
	for _, m := range params.obj {
		q.Set(m.Key, m.Value.queryValue())
	}
	return q.Encode()
}
