// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package credentials

import (
	"errors"
	"sort"
	"time"
)

// ErrMissingServerID is returned when a merge candidate has no Id.
// Callers construct candidates, so this is a programming error.
var ErrMissingServerID = errors.New("credentials: server record has no Id")

// mergeFields is the explicit whitelist of wire field names copied from a
// newer candidate into an existing record. Fields outside this list never
// survive a merge, so unexpected fields arriving from network-discovered
// data default to excluded.
var mergeFields = []string{
	"Name",
	"AccessToken",
	"ExchangeToken",
	"UserId",
	"ConnectUserId",
	"LastConnectionMode",
	"ConnectServerId",
	"address",
	"LocalAddress",
	"RemoteAddress",
	"ManualAddress",
}

// nowFunc is swapped out in tests for deterministic timestamps.
var nowFunc = time.Now

// AddUpdateServer merges candidate into the set.
//
// A candidate with an unknown Id is appended with DateLastAccessed set to
// now. When a record with the same Id exists, the candidate is discarded
// if its DateLastAccessed is older than or equal to the existing one
// (protection against stale discovery replies overwriting a more recent
// direct login). Otherwise only the mergeFields subset is copied forward
// and DateLastAccessed is bumped to now.
//
// The returned pointer aliases the set's backing array and is invalidated
// by the next mutation.
func (cs *CredentialSet) AddUpdateServer(candidate ServerRecord) (*ServerRecord, error) {
	if candidate.ID == "" {
		return nil, ErrMissingServerID
	}

	existing := cs.Server(candidate.ID)
	if existing == nil {
		candidate.DateLastAccessed = NewTimestamp(nowFunc())
		cs.Servers = append(cs.Servers, candidate.Clone())
		return &cs.Servers[len(cs.Servers)-1], nil
	}

	if !candidate.DateLastAccessed.After(existing.DateLastAccessed.Time) {
		return existing, nil
	}

	for _, field := range mergeFields {
		copyField(existing, &candidate, field)
	}
	existing.DateLastAccessed = NewTimestamp(nowFunc())
	return existing, nil
}

// copyField copies a single whitelisted field, addressed by its wire name.
func copyField(dst, src *ServerRecord, field string) {
	switch field {
	case "Name":
		dst.Name = src.Name
	case "AccessToken":
		dst.AccessToken = src.AccessToken
	case "ExchangeToken":
		dst.ExchangeToken = src.ExchangeToken
	case "UserId":
		dst.UserID = src.UserID
	case "ConnectUserId":
		dst.ConnectUserID = src.ConnectUserID
	case "LastConnectionMode":
		dst.LastConnectionMode = src.LastConnectionMode
	case "ConnectServerId":
		dst.ConnectServerID = src.ConnectServerID
	case "address":
		dst.Address = src.Address
	case "LocalAddress":
		dst.LocalAddress = src.LocalAddress
	case "RemoteAddress":
		dst.RemoteAddress = src.RemoteAddress
	case "ManualAddress":
		dst.ManualAddress = src.ManualAddress
	}
}

// ApplyServer records an authoritative local observation (a successful
// connect or login): the whitelist subset is always copied forward and
// DateLastAccessed is bumped, with no staleness check. The staleness
// guard in AddUpdateServer exists to protect against late network
// discovery replies; it must not suppress a direct login performed
// within the same second.
func (cs *CredentialSet) ApplyServer(candidate ServerRecord) (*ServerRecord, error) {
	if candidate.ID == "" {
		return nil, ErrMissingServerID
	}

	existing := cs.Server(candidate.ID)
	if existing == nil {
		candidate.DateLastAccessed = NewTimestamp(nowFunc())
		cs.Servers = append(cs.Servers, candidate.Clone())
		return &cs.Servers[len(cs.Servers)-1], nil
	}

	for _, field := range mergeFields {
		copyField(existing, &candidate, field)
	}
	existing.DateLastAccessed = NewTimestamp(nowFunc())
	return existing, nil
}

// AddUpdateUser appends user to the server's user list unless an entry
// with the same Id already exists. There is no field-level merge.
func AddUpdateUser(server *ServerRecord, user UserRecord) {
	for i := range server.Users {
		if server.Users[i].ID == user.ID {
			return
		}
	}
	server.Users = append(server.Users, user)
}

// SortByLastAccessed orders servers most recently accessed first.
func (cs *CredentialSet) SortByLastAccessed() {
	sort.SliceStable(cs.Servers, func(i, j int) bool {
		return cs.Servers[i].DateLastAccessed.After(cs.Servers[j].DateLastAccessed.Time)
	})
}
