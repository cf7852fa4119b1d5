// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package realtime

import (
	"sync"
	"time"

	"github.com/tomtom215/jellybridge/internal/logging"
)

// keepAlive periodically re-sends the KeepAlive frame at half the
// server-specified timeout. It is nested inside the transport's
// lifecycle: Stop joins the goroutine, and a replacement ticker must
// fully supersede a prior one before starting.
type keepAlive struct {
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// startKeepAlive spawns the ticker goroutine. send failures end the
// ticker; the read loop notices the broken socket independently.
func startKeepAlive(interval time.Duration, send func() error) *keepAlive {
	k := &keepAlive{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(k.done)

		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()

		for {
			select {
			case <-k.stop:
				return
			case <-ticker.C:
				if err := send(); err != nil {
					logging.Warn().Err(err).Msg("keepalive send failed")
					return
				}
				logging.Trace().Msg("keepalive sent")
			}
		}
	}()

	return k
}

// Stop halts the ticker and waits for the goroutine to exit. Safe to
// call more than once.
func (k *keepAlive) Stop() {
	k.stopOnce.Do(func() { close(k.stop) })
	<-k.done
}
