// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

/*
transport.go - Realtime push-notification transport

This file implements the persistent websocket client: connect, serve
messages until closed, reconnect unless explicitly stopped. Inbound
frames are deduplicated by MessageId and forwarded in arrival order to a
single registered handler.

WebSocket Endpoint: ws(s)://{server}/socket?api_key={token}&device_id={id}
*/

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/internal/logging"
	"github.com/tomtom215/jellybridge/internal/metrics"
	"github.com/tomtom215/jellybridge/rest"
)

const (
	// Event names emitted through the handler alongside forwarded
	// server message types.
	EventConnect    = "WebSocketConnect"
	EventDisconnect = "WebSocketDisconnect"
	EventError      = "WebSocketError"

	initialReconnectDelay = time.Second
	maxReconnectDelay     = 32 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Handler receives decoded events in socket arrival order. data is nil
// for connect/disconnect events.
type Handler func(event string, data map[string]any)

// frame is the wire envelope of one websocket message.
type frame struct {
	MessageType string          `json:"MessageType"`
	MessageID   string          `json:"MessageId,omitempty"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

// Transport maintains the push-notification channel as a supervised
// service. A transport is used once: construct, Serve, Close.
type Transport struct {
	cfg     *config.Config
	session *config.Session
	handler Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	keepalive *keepAlive
	stopped   bool

	// messageIDs tracks seen MessageId values for the transport's
	// lifetime; repeats are dropped silently.
	messageIDs map[string]struct{}
}

// NewTransport builds a transport bound to the session's server and
// token. handler must not be nil.
func NewTransport(cfg *config.Config, session *config.Session, handler Handler) *Transport {
	return &Transport{
		cfg:        cfg,
		session:    session,
		handler:    handler,
		messageIDs: make(map[string]struct{}),
	}
}

// URL derives the websocket endpoint from the session's HTTP(S) base
// address, token and device id.
func (t *Transport) URL() (string, error) {
	server := t.session.Server()
	if server == "" {
		return "", errors.New("realtime: no server configured")
	}

	parsed, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("realtime: invalid server address: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/socket"

	query := parsed.Query()
	query.Set("api_key", t.session.Token())
	query.Set("device_id", t.cfg.App.DeviceID)
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// Serve implements suture.Service: connect, pump messages, reconnect
// with capped exponential backoff. Only Close or context cancellation
// ends the loop.
func (t *Transport) Serve(ctx context.Context) error {
	delay := initialReconnectDelay

	for {
		if t.isStopped() {
			return suture.ErrDoNotRestart
		}

		conn, err := t.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.WSErrors.Inc()
			logging.Warn().Err(err).Msg("websocket dial failed")
			t.emitError(err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}
		delay = initialReconnectDelay

		if !t.setConn(conn) {
			// Close raced the dial; discard the fresh socket.
			_ = conn.Close()
			return suture.ErrDoNotRestart
		}
		metrics.WSConnects.Inc()
		logging.Info().Msg("--->[ websocket ]")
		t.handler(EventConnect, nil)

		// A blocked read is only interruptible by closing the socket.
		watchDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				t.closeConn()
			case <-watchDone:
			}
		}()

		readErr := t.readLoop(conn)
		close(watchDone)

		t.stopKeepalive()
		t.closeConn()

		logging.Info().Msg("---<[ websocket ]")
		t.handler(EventDisconnect, nil)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.isStopped() {
			return suture.ErrDoNotRestart
		}
		if readErr != nil {
			metrics.WSErrors.Inc()
			t.emitError(readErr)
		}
	}
}

// String implements fmt.Stringer for supervision logs.
func (t *Transport) String() string {
	return "realtime-transport"
}

// Close stops the transport for good: the stop flag is set, the
// keepalive ticker is joined and the socket is closed, which unblocks
// the read loop so Serve can observe the flag and exit without
// reconnecting.
func (t *Transport) Close() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	t.stopKeepalive()
	t.closeConn()
}

// Send writes a typed frame to the socket.
func (t *Transport) Send(messageType string, data any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return errors.New("realtime: transport is not connected")
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteJSON(frame{
		MessageType: messageType,
		Data:        marshalData(data),
	})
}

// dial opens the websocket connection with the configured TLS options.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := t.URL()
	if err != nil {
		return nil, err
	}

	tlsConf, err := rest.NewTLSConfig(t.cfg.TLS)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
		TLSClientConfig:   tlsConf,
	}

	logging.Debug().Str("url", wsURL).Msg("websocket dialing")

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	return conn, nil
}

// readLoop pumps messages until the socket errors or is closed.
// Messages are handled inline, preserving arrival order with a single
// consumer.
func (t *Transport) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		t.handleMessage(raw)
	}
}

// handleMessage decodes, deduplicates and dispatches one inbound frame.
func (t *Transport) handleMessage(raw []byte) {
	var msg frame
	if err := json.Unmarshal(raw, &msg); err != nil {
		logging.Warn().Err(err).Msg("ignoring malformed websocket frame")
		return
	}

	if msg.MessageID != "" {
		t.mu.Lock()
		_, seen := t.messageIDs[msg.MessageID]
		if !seen {
			t.messageIDs[msg.MessageID] = struct{}{}
		}
		t.mu.Unlock()
		if seen {
			metrics.WSMessagesDeduplicated.Inc()
			return
		}
	}

	metrics.WSMessages.WithLabelValues(msg.MessageType).Inc()

	switch msg.MessageType {
	case "ForceKeepAlive":
		t.onForceKeepAlive(msg.Data)
	case "KeepAlive":
		logging.Debug().Msg("KeepAlive received from server")
	default:
		t.forward(msg)
	}
}

// onForceKeepAlive answers immediately and replaces any running ticker
// with one firing at half the server-specified timeout.
func (t *Transport) onForceKeepAlive(data json.RawMessage) {
	var timeoutSeconds float64
	if err := json.Unmarshal(data, &timeoutSeconds); err != nil || timeoutSeconds <= 0 {
		logging.Warn().Str("data", string(data)).Msg("ForceKeepAlive with unusable timeout")
		return
	}

	if err := t.Send("KeepAlive", nil); err != nil {
		logging.Warn().Err(err).Msg("immediate keepalive failed")
	}

	interval := time.Duration(timeoutSeconds / 2 * float64(time.Second))
	logging.Debug().Dur("interval", interval).Msg("ForceKeepAlive received from server")

	t.mu.Lock()
	prev := t.keepalive
	t.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	next := startKeepAlive(interval, func() error {
		return t.Send("KeepAlive", nil)
	})

	t.mu.Lock()
	t.keepalive = next
	t.mu.Unlock()
}

// forward delivers a server message to the handler, normalizing the
// payload to a map and injecting the server id unless this client is
// the server's own default app.
func (t *Transport) forward(msg frame) {
	data := map[string]any{}

	if len(msg.Data) > 0 {
		var decoded any
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			logging.Warn().Err(err).Str("type", msg.MessageType).
				Msg("ignoring message with malformed payload")
			return
		}
		switch v := decoded.(type) {
		case map[string]any:
			data = v
		case nil:
		default:
			data = map[string]any{"value": v}
		}
	}

	if !t.cfg.App.DefaultApp {
		data["ServerId"] = t.session.ServerID()
	}

	t.handler(msg.MessageType, data)
}

// emitError reports a socket-level error to the handler without ending
// the retry loop.
func (t *Transport) emitError(err error) {
	t.handler(EventError, map[string]any{"error": err.Error()})
}

func (t *Transport) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// setConn adopts a freshly dialed socket. It reports false when Close
// already ran, in which case the caller owns the socket and must
// discard it.
func (t *Transport) setConn(conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.conn = conn
	return true
}

func (t *Transport) closeConn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = t.conn.Close()
		t.conn = nil
	}
}

func (t *Transport) stopKeepalive() {
	t.mu.Lock()
	k := t.keepalive
	t.keepalive = nil
	t.mu.Unlock()
	if k != nil {
		k.Stop()
	}
}

// marshalData wraps outbound payloads; nil stays an empty string to
// match the server's expectations for bare frames.
func marshalData(data any) json.RawMessage {
	if data == nil {
		return json.RawMessage(`""`)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to encode outbound payload")
		return json.RawMessage(`""`)
	}
	return raw
}
