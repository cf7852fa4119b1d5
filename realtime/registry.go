// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package realtime

import (
	"sync"

	"github.com/tomtom215/jellybridge/internal/logging"
)

// Registry enforces the "one active transport at a time" invariant.
// It is owned by the embedding application context, not hidden in
// process-wide state; multi-client mode lifts the invariant.
type Registry struct {
	mu          sync.Mutex
	multiClient bool
	active      []*Transport
}

// NewRegistry builds a registry. With multiClient false, activating a
// transport closes the previously active one first.
func NewRegistry(multiClient bool) *Registry {
	return &Registry{multiClient: multiClient}
}

// Activate registers t as active, closing any prior transport unless
// multi-client mode is enabled.
func (r *Registry) Activate(t *Transport) {
	r.mu.Lock()
	var toClose []*Transport
	if !r.multiClient && len(r.active) > 0 {
		toClose = r.active
		r.active = nil
	}
	r.active = append(r.active, t)
	r.mu.Unlock()

	for _, prev := range toClose {
		logging.Info().Msg("closing previously active realtime transport")
		prev.Close()
	}
}

// Deactivate removes t from the registry without closing it, for
// transports that already stopped on their own.
func (r *Registry) Deactivate(t *Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, candidate := range r.active {
		if candidate == t {
			r.active = append(r.active[:i], r.active[i+1:]...)
			return
		}
	}
}

// Close stops every registered transport.
func (r *Registry) Close() {
	r.mu.Lock()
	active := r.active
	r.active = nil
	r.mu.Unlock()

	for _, t := range active {
		t.Close()
	}
}

// Active reports how many transports are currently registered.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
