// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

// Package jellybridge ties the runtime core together: the resilient
// request pipeline, the connection negotiator, the realtime websocket
// transport and the time sync estimator, behind one Client with a
// single event callback boundary.
//
// Typical usage:
//
//	cfg, _ := config.Load()
//	client, _ := jellybridge.New(cfg, jellybridge.Options{Callback: onEvent})
//	client.ConnectToAddress(ctx, "demo.jellyfin.org", connect.Options{})
//	client.Login(ctx, "https://demo.jellyfin.org", "demo", "")
//	client.Start(ctx, jellybridge.StartOptions{Realtime: true, Timesync: true})
//	defer client.Stop()
package jellybridge

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/connect"
	"github.com/tomtom215/jellybridge/credentials"
	"github.com/tomtom215/jellybridge/internal/logging"
	"github.com/tomtom215/jellybridge/realtime"
	"github.com/tomtom215/jellybridge/rest"
	"github.com/tomtom215/jellybridge/timesync"
)

// EventFunc is the single external handler: named lifecycle events
// (ServerOnline, ServerUnreachable, Unauthorized, AccessRestricted,
// WebSocketConnect, WebSocketDisconnect, WebSocketError) plus every
// forwarded server message type.
type EventFunc func(event string, data map[string]any)

// Options configures a Client.
type Options struct {
	// Persister owns durable credential storage; nil keeps credentials
	// in memory only. The caller retains ownership and closes it.
	Persister credentials.Persister

	// Callback receives all emitted events; nil discards them.
	Callback EventFunc

	// MultiClient lifts the one-active-transport invariant.
	MultiClient bool
}

// StartOptions selects which background services Start launches.
type StartOptions struct {
	Realtime bool
	Timesync bool
}

// ErrNotSignedIn is returned by Start before a successful negotiation.
var ErrNotSignedIn = errors.New("jellybridge: not signed in")

// Client is the embedding application's entry point.
type Client struct {
	cfg        *config.Config
	session    *config.Session
	store      *credentials.Store
	persister  credentials.Persister
	restClient *rest.Client
	api        rest.Doer
	negotiator *connect.Negotiator
	registry   *realtime.Registry
	estimator  *timesync.Estimator
	callback   EventFunc

	signedIn   bool
	transport  *realtime.Transport
	supervisor *suture.Supervisor
	cancel     context.CancelFunc
	done       <-chan error
}

// New wires a client from configuration. When a persister is supplied,
// previously stored credentials are loaded into the store.
func New(cfg *config.Config, opts Options) (*Client, error) {
	cfg.EnsureDeviceID()

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	session := config.NewSession()
	store := credentials.NewStore()

	if opts.Persister != nil {
		set, err := opts.Persister.Load()
		if err != nil {
			return nil, err
		}
		store.Set(set)
	}

	restClient := rest.NewClient(cfg, session)

	var api rest.Doer = restClient
	if cfg.Breaker.Enabled {
		api = rest.NewBreakerClient(restClient, cfg.Breaker)
	}

	c := &Client{
		cfg:        cfg,
		session:    session,
		store:      store,
		persister:  opts.Persister,
		restClient: restClient,
		api:        api,
		negotiator: connect.NewNegotiator(cfg, session, restClient, store, opts.Persister),
		registry:   realtime.NewRegistry(opts.MultiClient),
		estimator:  timesync.NewEstimator(restClient),
		callback:   opts.Callback,
	}

	// Definitive pipeline failures surface as named events so the
	// embedding application can react. A plain 401 revokes the stored
	// server token, not just the session's copy, so a dead credential
	// does not survive a restart.
	restClient.OnFailure(func(kind rest.FailureKind, status int) {
		if kind == rest.FailureUnauthorized {
			c.negotiator.RevokeToken()
		}
		data := map[string]any{}
		if status != 0 {
			data["status"] = status
		}
		c.emit(string(kind), data)
	})

	return c, nil
}

// emit delivers an event to the registered callback.
func (c *Client) emit(event string, data map[string]any) {
	if c.callback != nil {
		c.callback(event, data)
	}
}

// Connect resumes the most recently used server, optionally running
// discovery first. A SignedIn outcome emits ServerOnline.
func (c *Client) Connect(ctx context.Context, discover bool) connect.Result {
	return c.afterNegotiation(c.negotiator.Connect(ctx, discover))
}

// ConnectToAddress negotiates against an explicit address.
func (c *Client) ConnectToAddress(ctx context.Context, address string, opts connect.Options) connect.Result {
	return c.afterNegotiation(c.negotiator.ConnectToAddress(ctx, address, opts))
}

// ConnectToServer negotiates against a known server record.
func (c *Client) ConnectToServer(ctx context.Context, server credentials.ServerRecord, opts connect.Options) connect.Result {
	return c.afterNegotiation(c.negotiator.ConnectToServer(ctx, server, opts))
}

func (c *Client) afterNegotiation(result connect.Result) connect.Result {
	if result.State == connect.SignedIn {
		c.signedIn = true
		c.emit("ServerOnline", map[string]any{"Id": c.session.ServerID()})
	}
	return result
}

// Login authenticates by username and password, then marks the client
// signed in on success.
func (c *Client) Login(ctx context.Context, serverURL, username, password string) (*connect.AuthResult, error) {
	data, err := c.negotiator.Login(ctx, serverURL, username, password)
	if err != nil {
		return nil, err
	}

	c.signedIn = true
	c.emit("ServerOnline", map[string]any{"Id": data.ServerID})
	return data, nil
}

// GetAvailableServers merges discovery results into the store and
// returns known servers, most recent first.
func (c *Client) GetAvailableServers(ctx context.Context, discover bool) []credentials.ServerRecord {
	return c.negotiator.GetAvailableServers(ctx, discover)
}

// Start launches the selected background services under a supervision
// tree. It requires a prior successful sign-in.
func (c *Client) Start(ctx context.Context, opts StartOptions) error {
	if !c.signedIn {
		return ErrNotSignedIn
	}
	if c.supervisor != nil {
		return errors.New("jellybridge: already started")
	}

	if err := c.restClient.StartSession(); err != nil {
		return err
	}

	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	c.supervisor = suture.New("jellybridge", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   10 * time.Second,
	})

	if opts.Realtime {
		c.transport = realtime.NewTransport(c.cfg, c.session, c.emit)
		c.registry.Activate(c.transport)
		c.supervisor.Add(c.transport)
	}
	if opts.Timesync {
		c.supervisor.Add(c.estimator)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = c.supervisor.ServeBackground(runCtx)

	logging.Info().Bool("realtime", opts.Realtime).Bool("timesync", opts.Timesync).
		Msg("jellybridge started")
	return nil
}

// Stop shuts down background services and the pooled HTTP session.
// The persister, if any, remains open and owned by the caller.
func (c *Client) Stop() {
	c.registry.Close()

	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
		c.supervisor = nil
		c.transport = nil
	}

	c.restClient.StopSession()
	logging.Info().Msg("jellybridge stopped")
}

// API returns the request execution surface (circuit-breaker wrapped
// when enabled) for issuing endpoint calls.
func (c *Client) API() rest.Doer {
	return c.api
}

// Session exposes the mutable session state.
func (c *Client) Session() *config.Session {
	return c.session
}

// Credentials exposes the credential store.
func (c *Client) Credentials() *credentials.Store {
	return c.store
}

// Timesync exposes the clock offset estimator.
func (c *Client) Timesync() *timesync.Estimator {
	return c.estimator
}

// Send writes a typed frame to the realtime socket.
func (c *Client) Send(messageType string, data any) error {
	if c.transport == nil {
		return errors.New("jellybridge: realtime transport not started")
	}
	return c.transport.Send(messageType, data)
}
