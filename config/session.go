// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package config

import (
	"sync"
	"time"
)

// Session is the mutable authentication state of one client: the resolved
// server address, its id and display name, the access token, and the
// signed-in user. The negotiator writes it, the request pipeline and the
// realtime transport read it concurrently.
type Session struct {
	mu sync.RWMutex

	server     string // normalized base URL
	serverID   string
	serverName string
	token      string
	userID     string

	// lastServerTime is the Date header of the most recent successful
	// response, kept for observability.
	lastServerTime time.Time
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Server returns the normalized base URL of the active server.
func (s *Session) Server() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// SetServer records the normalized base URL of the active server.
func (s *Session) SetServer(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = address
}

// ServerID returns the id of the active server.
func (s *Session) ServerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverID
}

// SetServerID records the id of the active server.
func (s *Session) SetServerID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverID = id
}

// ServerName returns the display name of the active server.
func (s *Session) ServerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverName
}

// SetServerName records the display name of the active server.
func (s *Session) SetServerName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverName = name
}

// Token returns the current access token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken records the access token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// ClearToken drops the access token.
func (s *Session) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// UserID returns the signed-in user id, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetUserID records the signed-in user id.
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// LastServerTime returns the server time observed on the most recent
// successful response, or the zero time if none has been seen.
func (s *Session) LastServerTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastServerTime
}

// RecordServerTime stores the server time from a response Date header.
func (s *Session) RecordServerTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastServerTime = t
}
