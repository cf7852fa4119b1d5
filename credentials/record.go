// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

// Package credentials maintains the authoritative list of known media
// servers and their per-server users, including the merge policy applied
// when newly observed server data conflicts with stored data.
//
// The wire format uses the server's PascalCase field names (and the
// historical lowercase "address") declared statically via struct tags.
package credentials

import (
	"time"
)

// timestampLayout is the second-precision, Z-suffixed format used for
// DateLastAccessed on the wire.
const timestampLayout = "2006-01-02T15:04:05Z"

// Timestamp is a UTC timestamp with second precision, serialized as
// Z-suffixed ISO-8601.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to a second-precision UTC Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timestampLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(`"`+timestampLayout+`"`, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ServerRecord is the persisted description of one known media-server
// endpoint plus its authentication state. Records are identified by ID
// and mutated only through the merge algorithm in merge.go.
type ServerRecord struct {
	ID      string `json:"Id"`
	Name    string `json:"Name,omitempty"`
	Address string `json:"address,omitempty"`

	LocalAddress  string `json:"LocalAddress,omitempty"`
	RemoteAddress string `json:"RemoteAddress,omitempty"`
	ManualAddress string `json:"ManualAddress,omitempty"`

	AccessToken   string `json:"AccessToken,omitempty"`
	ExchangeToken string `json:"ExchangeToken,omitempty"`

	UserID        string `json:"UserId,omitempty"`
	ConnectUserID string `json:"ConnectUserId,omitempty"`

	LastConnectionMode string `json:"LastConnectionMode,omitempty"`
	ConnectServerID    string `json:"ConnectServerId,omitempty"`

	DateLastAccessed Timestamp    `json:"DateLastAccessed"`
	Users            []UserRecord `json:"Users,omitempty"`
}

// Clone returns a deep copy of the record.
func (r ServerRecord) Clone() ServerRecord {
	out := r
	if r.Users != nil {
		out.Users = make([]UserRecord, len(r.Users))
		copy(out.Users, r.Users)
	}
	return out
}

// UserRecord is one known user of a server, keyed by ID.
type UserRecord struct {
	ID                string `json:"Id"`
	IsSignedInOffline bool   `json:"IsSignedInOffline,omitempty"`
}

// CredentialSet is the root persisted credential document. Server order
// is significant only for display (most recently accessed first).
type CredentialSet struct {
	Servers []ServerRecord `json:"Servers"`
}

// Clone returns a deep copy of the set.
func (cs CredentialSet) Clone() CredentialSet {
	out := CredentialSet{}
	if cs.Servers != nil {
		out.Servers = make([]ServerRecord, len(cs.Servers))
		for i := range cs.Servers {
			out.Servers[i] = cs.Servers[i].Clone()
		}
	}
	return out
}

// Server returns a pointer to the record with the given id, or nil.
func (cs *CredentialSet) Server(id string) *ServerRecord {
	for i := range cs.Servers {
		if cs.Servers[i].ID == id {
			return &cs.Servers[i]
		}
	}
	return nil
}
