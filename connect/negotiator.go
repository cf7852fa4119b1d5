// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package connect

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/credentials"
	"github.com/tomtom215/jellybridge/internal/logging"
	"github.com/tomtom215/jellybridge/rest"
)

// Options tunes a single connect attempt.
type Options struct {
	// DisableAutoLogin skips stored-token validation and forces the
	// ServerSignIn state, clearing any stored token.
	DisableAutoLogin bool

	// Address overrides the candidate's stored address, e.g. when a
	// containerized server advertises an unreachable internal address.
	Address string
}

// systemInfo is the subset of the server info responses the negotiator
// consumes.
type systemInfo struct {
	ID         string `json:"Id"`
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	Address    string `json:"address"`
}

// AuthResult is the login call's response envelope.
type AuthResult struct {
	User struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// Negotiator turns a bare address or a stored server record into a
// signed-in session, keeping the credential store current along the way.
type Negotiator struct {
	cfg       *config.Config
	session   *config.Session
	client    *rest.Client
	store     *credentials.Store
	persister credentials.Persister
	disc      *Discoverer
}

// NewNegotiator wires the negotiator to its collaborators. persister may
// be nil when the embedding application owns persistence itself.
func NewNegotiator(
	cfg *config.Config,
	session *config.Session,
	client *rest.Client,
	store *credentials.Store,
	persister credentials.Persister,
) *Negotiator {
	return &Negotiator{
		cfg:       cfg,
		session:   session,
		client:    client,
		store:     store,
		persister: persister,
		disc:      &Discoverer{},
	}
}

// SetDiscoverer replaces the UDP discoverer, letting tests point it at
// a loopback listener.
func (n *Negotiator) SetDiscoverer(d *Discoverer) {
	n.disc = d
}

// persist hands the current credential document to the external
// persister. Persistence failures are logged, not propagated: the
// in-memory state is already correct and the next save retries.
func (n *Negotiator) persist() {
	if n.persister == nil {
		return
	}
	if err := n.persister.Save(n.store.Get()); err != nil {
		logging.Err(err).Msg("failed to persist credentials")
	}
}

// GetAvailableServers merges freshly discovered servers into the store
// and returns all known servers, most recently accessed first.
func (n *Negotiator) GetAvailableServers(ctx context.Context, discover bool) []credentials.ServerRecord {
	if discover {
		for _, found := range n.disc.Discover(ctx) {
			rec := found
			n.store.Update(func(cs *credentials.CredentialSet) {
				if _, err := cs.AddUpdateServer(rec); err != nil {
					logging.Warn().Err(err).Msg("skipping discovered server")
				}
			})
		}
	}

	var servers []credentials.ServerRecord
	n.store.Update(func(cs *credentials.CredentialSet) {
		cs.SortByLastAccessed()
		servers = cs.Clone().Servers
	})
	n.persist()
	return servers
}

// Connect resumes the most recently used server. With no known servers
// it returns ServerSelection and the caller must pick one; otherwise
// only the single most recent server is attempted, with no fallback to
// the next entry.
func (n *Negotiator) Connect(ctx context.Context, discover bool) Result {
	servers := n.GetAvailableServers(ctx, discover)
	logging.Info().Int("servers", len(servers)).Msg("begin connect")

	if len(servers) == 0 {
		return Result{State: ServerSelection, Servers: servers}
	}

	return n.ConnectToServer(ctx, servers[0], Options{})
}

// ConnectToServer probes the candidate's public info endpoint and, on
// success, runs the validation sub-protocol. An unreachable candidate
// yields Unavailable.
func (n *Negotiator) ConnectToServer(ctx context.Context, server credentials.ServerRecord, opts Options) Result {
	if opts.Address != "" {
		server.Address = opts.Address
	}

	info, err := n.publicInfo(ctx, server.Address)
	if err != nil || info.ID == "" {
		logging.Warn().Err(err).Str("address", server.Address).
			Msg("failed to connect to server")
		return Result{State: Unavailable}
	}

	server.Name = info.ServerName
	server.ID = info.ID
	if info.Address != "" {
		server.Address = info.Address
	}

	return n.afterConnectValidated(ctx, server, opts, true)
}

// ConnectToAddress normalizes the address, follows any advertised
// redirect to the server's preferred public URL, and connects.
func (n *Negotiator) ConnectToAddress(ctx context.Context, address string, opts Options) Result {
	if address == "" {
		return Result{State: Unavailable}
	}

	address = NormalizeAddress(address)
	if resolved := n.checkRedirect(ctx, address); resolved != "" && resolved != address {
		logging.Info().Str("from", address).Str("to", resolved).
			Msg("following server redirect")
		address = resolved
	}

	return n.ConnectToServer(ctx, credentials.ServerRecord{Address: address}, opts)
}

// afterConnectValidated is the validation sub-protocol: it validates a
// stored token when asked to, then finalizes the store, the session and
// the resulting state.
func (n *Negotiator) afterConnectValidated(ctx context.Context, server credentials.ServerRecord, opts Options, verify bool) Result {
	if opts.DisableAutoLogin {
		server.AccessToken = ""
		server.UserID = ""
		n.session.ClearToken()
		return n.finalize(server)
	}

	if verify && server.AccessToken != "" {
		info, err := n.validateToken(ctx, server)
		if err != nil || info.ID == "" {
			// A stale token is terminal for this attempt: no silent
			// downgrade to an unauthenticated sign-in.
			logging.Warn().Err(err).Str("server", server.Name).
				Msg("stored token failed validation")
			server.AccessToken = ""
			server.UserID = ""
			n.session.ClearToken()
			n.finalize(server)
			return Result{State: Unavailable}
		}

		server.Name = info.ServerName
		server.ID = info.ID
		n.session.SetToken(server.AccessToken)
		n.session.SetUserID(server.UserID)
		return n.afterConnectValidated(ctx, server, opts, false)
	}

	return n.finalize(server)
}

// finalize writes the record through the store, binds the session to the
// server and reports SignedIn or ServerSignIn depending on whether a
// token survived.
func (n *Negotiator) finalize(server credentials.ServerRecord) Result {
	var final credentials.ServerRecord
	n.store.Update(func(cs *credentials.CredentialSet) {
		rec, err := cs.ApplyServer(server)
		if err != nil {
			logging.Warn().Err(err).Msg("cannot store server record")
			final = server
			return
		}
		final = rec.Clone()
	})
	n.persist()

	n.session.SetServer(final.Address)
	n.session.SetServerID(final.ID)
	n.session.SetServerName(final.Name)

	state := ServerSignIn
	if final.AccessToken != "" {
		n.session.SetToken(final.AccessToken)
		n.session.SetUserID(final.UserID)
		state = SignedIn
	}

	logging.Info().Str("server", final.Name).Str("state", state.String()).
		Msg("connection negotiated")
	return Result{State: state, Server: &final}
}

// Login authenticates against serverURL. Rejected credentials return
// ErrLoginFailed; transport errors pass through as pipeline failures.
// On success the matching stored server (by the response's server id)
// is updated and persisted; an unknown server id leaves the store
// untouched.
func (n *Negotiator) Login(ctx context.Context, serverURL, username, password string) (*AuthResult, error) {
	if username == "" || serverURL == "" {
		return nil, ErrLoginFailed
	}

	serverURL = NormalizeAddress(serverURL)

	var data AuthResult
	err := n.client.DoJSON(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   strings.TrimSuffix(serverURL, "/") + "/Users/AuthenticateByName",
		Body: rest.Object(
			rest.Field("Username", username),
			rest.Field("Pw", password),
		),
		Retries: rest.NoRetries,
	}, &data)
	if err != nil {
		switch rest.KindOf(err) {
		case rest.FailureUnauthorized, rest.FailureAccessRestricted, rest.FailureHTTP:
			logging.Info().Str("username", username).Msg("login rejected")
			return nil, ErrLoginFailed
		}
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, ErrLoginFailed
	}

	logging.Info().Str("username", username).Msg("logged in")

	n.session.SetToken(data.AccessToken)
	n.session.SetUserID(data.User.ID)

	n.store.Update(func(cs *credentials.CredentialSet) {
		existing := cs.Server(data.ServerID)
		if existing == nil {
			logging.Warn().Str("server_id", data.ServerID).
				Msg("login response references unknown server, store unchanged")
			return
		}

		update := existing.Clone()
		update.UserID = data.User.ID
		update.AccessToken = data.AccessToken
		rec, err := cs.ApplyServer(update)
		if err != nil {
			return
		}
		credentials.AddUpdateUser(rec, credentials.UserRecord{
			ID:                data.User.ID,
			IsSignedInOffline: true,
		})
	})
	n.persist()

	return &data, nil
}

// RevokeToken drops the token from the active server record, the store
// and the session.
func (n *Negotiator) RevokeToken() {
	logging.Info().Msg("revoking token")

	serverID := n.session.ServerID()
	n.store.Update(func(cs *credentials.CredentialSet) {
		if rec := cs.Server(serverID); rec != nil {
			rec.AccessToken = ""
		}
	})
	n.persist()
	n.session.ClearToken()
}

// publicInfo probes the unauthenticated public info endpoint of a
// candidate address. No retries: probing is advisory.
func (n *Negotiator) publicInfo(ctx context.Context, address string) (systemInfo, error) {
	var info systemInfo
	err := n.client.DoJSON(ctx, rest.Request{
		Path:    strings.TrimSuffix(address, "/") + "/system/info/public",
		Retries: rest.NoRetries,
	}, &info)
	return info, err
}

// validateToken probes the authenticated system info endpoint using the
// candidate record's token instead of the session's.
func (n *Negotiator) validateToken(ctx context.Context, server credentials.ServerRecord) (systemInfo, error) {
	var info systemInfo
	err := n.client.DoJSON(ctx, rest.Request{
		Path: strings.TrimSuffix(server.Address, "/") + "/system/info",
		Headers: map[string]string{
			"Accept":        "application/json",
			"Content-Type":  "application/json",
			"User-Agent":    n.cfg.UserAgent(),
			"Authorization": n.client.AuthHeaderWithToken(server.AccessToken),
		},
		Retries: rest.NoRetries,
	}, &info)
	return info, err
}

// checkRedirect resolves the server's preferred public URL by following
// redirects on the public info endpoint. Errors are advisory and yield
// the input address unchanged.
func (n *Negotiator) checkRedirect(ctx context.Context, address string) string {
	httpClient, err := n.client.HTTPClient()
	if err != nil {
		return address
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address+"/system/info/public", http.NoBody)
	if err != nil {
		return address
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		logging.Debug().Err(err).Str("address", address).Msg("redirect check failed")
		return address
	}
	defer func() { _ = resp.Body.Close() }()

	final := resp.Request.URL.String()
	return strings.TrimSuffix(final, "/system/info/public")
}
