// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package credentials

import (
	"sync"
)

// Persister is the external collaborator owning durable storage of the
// credential document. Implementations must tolerate concurrent Save
// calls from a single Store.
type Persister interface {
	Load() (CredentialSet, error)
	Save(CredentialSet) error
	Close() error
}

// Store holds the in-memory credential document. Reads and writes work on
// deep copies, so callers mutate a snapshot and write it back — a race
// between two writers resolves last-writer-wins at document granularity.
type Store struct {
	mu  sync.RWMutex
	set CredentialSet
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a deep copy of the credential document.
func (s *Store) Get() CredentialSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Clone()
}

// Set replaces the credential document with a deep copy of cs.
func (s *Store) Set(cs CredentialSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = cs.Clone()
}

// Clear drops all stored servers.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = CredentialSet{}
}

// ServerByID returns a copy of the record with the given id.
func (s *Store) ServerByID(id string) (ServerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.set.Server(id); rec != nil {
		return rec.Clone(), true
	}
	return ServerRecord{}, false
}

// Update applies fn to the document under the write lock. fn receives the
// live document and may mutate it in place.
func (s *Store) Update(fn func(*CredentialSet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.set)
}
