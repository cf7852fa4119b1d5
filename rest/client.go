// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

/*
client.go - Resilient HTTP request pipeline

This file implements the single request pipeline shared by every API
call: placeholder substitution, default headers, retry on transient
failures, streaming downloads, and pre-authorized URL building.

API Reference: https://api.jellyfin.org/
*/

package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/internal/logging"
	"github.com/tomtom215/jellybridge/internal/metrics"
)

// streamChunkSize is the copy buffer size for streaming downloads.
const streamChunkSize = 8192

// NoRetries disables the retry budget for a single request.
const NoRetries = -1

// FailureFunc is notified of every definitive pipeline failure so the
// owning client can react (mark the server unreachable, drop a cached
// token). status is non-zero for HTTP-level failures.
type FailureFunc func(kind FailureKind, status int)

// Request describes one logical API call. It is consumed once by the
// pipeline and not retained.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is either a handler relative to the session's base server
	// (e.g. "Items/1234") or a fully qualified URL.
	Path string

	// Params is an object Value rendered into the query string after
	// placeholder substitution.
	Params Value

	// Body is JSON-encoded after placeholder substitution.
	Body Value

	// Headers, when non-nil, replaces the default header set entirely.
	Headers map[string]string

	// Timeout overrides the configured per-request timeout when > 0.
	Timeout time.Duration

	// Retries overrides the configured retry budget when non-zero;
	// pass NoRetries to fail on the first transient error.
	Retries int

	// HTTPClient supplies a one-off session instead of the shared
	// pooled one, e.g. for probing a server that is not yet selected.
	HTTPClient *http.Client
}

// Client is the shared request pipeline. All methods are safe for
// concurrent use; the pooled HTTP session is created lazily on first
// use and reused across calls.
type Client struct {
	cfg     *config.Config
	session *config.Session

	mu   sync.Mutex
	http *http.Client

	limiter   *rate.Limiter
	onFailure FailureFunc

	// retryDelay is the fixed backoff between attempts, swapped out in
	// tests.
	retryDelay time.Duration
}

// NewClient creates a request pipeline bound to the given configuration
// and session state.
func NewClient(cfg *config.Config, session *config.Session) *Client {
	c := &Client{
		cfg:        cfg,
		session:    session,
		retryDelay: cfg.HTTP.RetryDelay,
	}
	if cfg.HTTP.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.HTTP.RequestsPerSecond), 1)
	}
	return c
}

// OnFailure registers the failure callback. Must be called before the
// first request.
func (c *Client) OnFailure(fn FailureFunc) {
	c.onFailure = fn
}

// Session returns the mutable session state shared with the negotiator
// and the realtime transport.
func (c *Client) Session() *config.Session {
	return c.session
}

// Config returns the static client configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// StartSession eagerly creates the pooled HTTP session. Calling it is
// optional; the first request creates the session on demand.
func (c *Client) StartSession() error {
	_, err := c.pooled()
	return err
}

// StopSession closes idle pooled connections. The client remains usable;
// a subsequent request recreates the pool.
func (c *Client) StopSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
}

// pooled returns the shared HTTP client, creating it on first use.
func (c *Client) pooled() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		return c.http, nil
	}

	tlsConf, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConf

	c.http = &http.Client{Transport: transport}
	return c.http, nil
}

// tlsConfig builds the TLS configuration for the pooled transport.
func (c *Client) tlsConfig() (*tls.Config, error) {
	return NewTLSConfig(c.cfg.TLS)
}

// NewTLSConfig builds a TLS configuration from the static config:
// mutual TLS when both cert and key are set, an optional CA override,
// and the skip-verify escape hatch. Shared with the websocket dialer.
func NewTLSConfig(tc config.TLSConfig) (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: tc.SkipVerify, //nolint:gosec // operator opt-in for self-signed servers
	}

	if tc.ClientCert != "" && tc.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tc.ClientCert, tc.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	if tc.ServerCA != "" {
		pem, err := os.ReadFile(tc.ServerCA)
		if err != nil {
			return nil, fmt.Errorf("failed to read server CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("server CA bundle %s contains no certificates", tc.ServerCA)
		}
		conf.RootCAs = pool
	}

	return conf, nil
}

// placeholders snapshots the current substitution values.
func (c *Client) placeholders() Placeholders {
	return Placeholders{
		Server:   c.session.Server(),
		UserID:   c.session.UserID(),
		DeviceID: c.cfg.App.DeviceID,
	}
}

// BuildURL returns a fully qualified, pre-authorized URL for the given
// handler: the session token is injected as an api_key query parameter
// so the link can be handed to an external player.
func (c *Client) BuildURL(handler string, params Value) (string, error) {
	if token := c.session.Token(); token != "" {
		params = params.Set("api_key", String(token))
	}
	return c.buildURL(Request{Path: handler, Params: params})
}

// buildURL combines the base server address with the request path,
// expands placeholders and appends the encoded query string. A path
// carrying its own scheme is used as-is.
func (c *Client) buildURL(req Request) (string, error) {
	ph := c.placeholders()
	path := ph.ExpandString(req.Path)

	var full string
	if strings.Contains(path, "://") {
		full = path
	} else {
		base := c.session.Server()
		if base == "" {
			return "", &Error{Kind: FailureMissingSchema, Err: errors.New("no base server configured")}
		}
		full = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}

	parsed, err := url.Parse(full)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{Kind: FailureMissingSchema, Err: fmt.Errorf("malformed URL %q", full)}
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return "", &Error{Kind: FailureMissingSchema, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	if !req.Params.IsZero() {
		query := encodeQuery(ph.ExpandValue(req.Params))
		if parsed.RawQuery != "" {
			parsed.RawQuery += "&" + query
		} else {
			parsed.RawQuery = query
		}
	}

	return parsed.String(), nil
}

// headers assembles the default header set, or the caller's override.
func (c *Client) headers(req Request) map[string]string {
	if req.Headers != nil {
		return req.Headers
	}
	return map[string]string{
		"Accept":          "application/json",
		"Content-Type":    "application/json",
		"Accept-Charset":  "UTF-8,*",
		"Accept-encoding": "gzip",
		"User-Agent":      c.cfg.UserAgent(),
		"X-Application":   c.cfg.UserAgent(),
		"Authorization":   c.AuthHeader(),
	}
}

// AuthHeader builds the MediaBrowser authorization scheme header from
// the device identity fields and, when signed in, the session token.
func (c *Client) AuthHeader() string {
	return c.AuthHeaderWithToken(c.session.Token())
}

// AuthHeaderWithToken builds the MediaBrowser header with an explicit
// token, used when validating a stored token that is not (yet) the
// session's.
func (c *Client) AuthHeaderWithToken(token string) string {
	app := c.cfg.App
	header := fmt.Sprintf(
		"MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q",
		app.Name, app.DeviceName, app.DeviceID, app.Version,
	)
	if token != "" {
		header += fmt.Sprintf(", Token=%q", token)
	}
	return header
}

// HTTPClient exposes the pooled HTTP session for collaborators that
// need raw response access, e.g. redirect resolution.
func (c *Client) HTTPClient() (*http.Client, error) {
	return c.pooled()
}

// Do executes one logical request and returns the raw response body.
// A 500 response yields (nil, nil): the server is degraded but the
// condition is not actionable by the caller.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.do(ctx, req, nil)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	metrics.HTTPRequests.WithLabelValues(method, outcomeLabel(err)).Inc()
	metrics.HTTPRequestDuration.Observe(time.Since(start).Seconds())
	return raw, err
}

// DoJSON executes the request and decodes the response into out. When
// the server returns no data, out is left unmodified and no error is
// returned.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Stream executes the request and copies the response body to dst in
// fixed-size chunks without buffering the payload. No JSON decoding is
// attempted. Returns the number of bytes written.
//
// A transient failure mid-copy is retried from the start of the body.
// When dst is an io.Seeker the partial output of the failed attempt is
// overwritten; otherwise retried attempts append to dst.
func (c *Client) Stream(ctx context.Context, req Request, dst io.Writer) (int64, error) {
	rewind := func() error { return nil }
	if seeker, ok := dst.(io.Seeker); ok {
		start, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, fmt.Errorf("failed to record stream offset: %w", err)
		}
		rewind = func() error {
			_, err := seeker.Seek(start, io.SeekStart)
			return err
		}
	}

	var written int64
	_, err := c.do(ctx, req, func(body io.Reader) error {
		if err := rewind(); err != nil {
			return err
		}
		buf := make([]byte, streamChunkSize)
		n, copyErr := io.CopyBuffer(dst, body, buf)
		written = n
		return copyErr
	})

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	metrics.HTTPRequests.WithLabelValues(method, outcomeLabel(err)).Inc()
	return written, err
}

// do runs the retry loop. When sink is non-nil the response body is
// handed to it instead of being buffered and returned.
func (c *Client) do(ctx context.Context, req Request, sink func(io.Reader) error) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, c.fail(err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if !req.Body.IsZero() {
		body, err = json.Marshal(c.placeholders().ExpandValue(req.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	httpClient := req.HTTPClient
	if httpClient == nil {
		httpClient, err = c.pooled()
		if err != nil {
			return nil, err
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.HTTP.Timeout
	}

	budget := c.cfg.HTTP.MaxRetries
	switch {
	case req.Retries == NoRetries:
		budget = 0
	case req.Retries > 0:
		budget = req.Retries
	}

	headers := c.headers(req)

	var lastKind FailureKind
	var lastErr error

	// budget counts retries, so the loop makes budget+1 attempts total.
	for attempt := 0; attempt <= budget; attempt++ {
		if attempt > 0 {
			metrics.HTTPRetries.Inc()
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
			logging.Debug().Str("url", fullURL).Int("attempt", attempt+1).
				Msg("retrying request")
		}

		raw, kind, err := c.attempt(ctx, httpClient, method, fullURL, body, headers, timeout, sink)
		switch kind {
		case "":
			if err != nil {
				return nil, c.fail(err)
			}
			return raw, nil
		case FailureServerUnreachable, FailureReadTimeout, failureRetryableHTTP:
			lastKind, lastErr = kind, err
			continue
		default:
			return nil, c.fail(err)
		}
	}

	if lastKind == failureRetryableHTTP {
		// 502 is retried like a connection failure but surfaces as an
		// HTTP failure once the budget is spent.
		return nil, c.fail(&Error{Kind: FailureHTTP, Status: http.StatusBadGateway, Err: lastErr})
	}
	return nil, c.fail(&Error{Kind: lastKind, Err: lastErr})
}

// failureRetryableHTTP is an internal marker for a 502 response; it
// never escapes the pipeline.
const failureRetryableHTTP FailureKind = "retryable-http"

// attempt issues exactly one HTTP call and classifies the result.
// A returned kind of "" means definitive success or a definitive,
// already-wrapped failure in err; a retryable kind means the caller
// should consume backoff budget and try again.
func (c *Client) attempt(
	ctx context.Context,
	httpClient *http.Client,
	method, fullURL string,
	body []byte,
	headers map[string]string,
	timeout time.Duration,
	sink func(io.Reader) error,
) (json.RawMessage, FailureKind, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, fullURL, reader)
	if err != nil {
		return nil, "", &Error{Kind: FailureMissingSchema, Err: err}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancellation is not a server failure.
			return nil, "", ctx.Err()
		}
		if isTimeout(err) {
			logging.Debug().Str("url", fullURL).Err(err).Msg("request timed out")
			return nil, FailureReadTimeout, err
		}
		logging.Debug().Str("url", fullURL).Err(err).Msg("connection failed")
		return nil, FailureServerUnreachable, err
	}
	defer func() { _ = resp.Body.Close() }()

	if t := serverTime(resp.Header.Get("Date")); !t.IsZero() {
		c.session.RecordServerTime(t)
	}

	switch {
	case resp.StatusCode == http.StatusBadGateway:
		logging.Debug().Str("url", fullURL).Msg("server returned 502, retrying")
		return nil, failureRetryableHTTP, fmt.Errorf("server returned 502 for %s", fullURL)

	case resp.StatusCode == http.StatusInternalServerError:
		// Degraded server: log and report "no data" rather than failing
		// the caller.
		logging.Warn().Str("url", fullURL).Msg("server returned 500, treating as empty result")
		return nil, "", nil

	case resp.StatusCode == http.StatusUnauthorized:
		if resp.Header.Get("X-Application-Error-Code") != "" {
			return nil, "", &Error{Kind: FailureAccessRestricted, Status: resp.StatusCode}
		}
		// A plain 401 means the stored token is no longer valid.
		c.session.ClearToken()
		return nil, "", &Error{Kind: FailureUnauthorized, Status: resp.StatusCode}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, "", &Error{
			Kind:   FailureHTTP,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("request to %s failed", fullURL),
		}
	}

	if sink != nil {
		if err := sink(resp.Body); err != nil {
			if isTimeout(err) {
				return nil, FailureReadTimeout, err
			}
			return nil, FailureServerUnreachable, err
		}
		return nil, "", nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, FailureReadTimeout, err
		}
		return nil, FailureServerUnreachable, err
	}
	if len(raw) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil, "", nil
	}
	return raw, "", nil
}

// sleep waits the fixed retry backoff, aborting early on context
// cancellation.
func (c *Client) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fail notifies the failure callback for definitive pipeline failures
// and passes the error through.
func (c *Client) fail(err error) error {
	var re *Error
	if errors.As(err, &re) && c.onFailure != nil {
		c.onFailure(re.Kind, re.Status)
	}
	return err
}

// isTimeout reports whether err is a timeout as opposed to a refused or
// reset connection.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// serverTime parses an RFC 1123 Date header, returning the zero time on
// absence or parse failure.
func serverTime(header string) time.Time {
	if header == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}
	}
	return t
}

// outcomeLabel maps a pipeline result to the metrics outcome label.
func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch KindOf(err) {
	case FailureServerUnreachable:
		return "server_unreachable"
	case FailureReadTimeout:
		return "read_timeout"
	case FailureUnauthorized:
		return "unauthorized"
	case FailureAccessRestricted:
		return "access_restricted"
	case FailureMissingSchema:
		return "missing_schema"
	case FailureHTTP:
		return "http_error"
	default:
		return "error"
	}
}
