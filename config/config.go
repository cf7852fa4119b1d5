// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

// Package config holds the static client configuration and the mutable
// per-connection session state shared by the request pipeline, the
// connection negotiator, and the realtime transport.
package config

import (
	"time"

	"github.com/google/uuid"
)

// Config is the static configuration of a Jellybridge client.
// It is loaded once via Load and not mutated afterwards; runtime
// authentication state lives on Session.
type Config struct {
	App     AppConfig     `koanf:"app"`
	HTTP    HTTPConfig    `koanf:"http"`
	TLS     TLSConfig     `koanf:"tls"`
	Breaker BreakerConfig `koanf:"breaker"`
	Log     LogConfig     `koanf:"log"`
}

// AppConfig identifies the embedding application to the server.
// The fields feed the MediaBrowser authorization header scheme.
type AppConfig struct {
	Name       string `koanf:"name" validate:"required"`
	Version    string `koanf:"version" validate:"required"`
	DeviceName string `koanf:"device_name" validate:"required"`
	DeviceID   string `koanf:"device_id"`

	// DefaultApp suppresses ServerId injection into forwarded websocket
	// events when this client is the server's own default app.
	DefaultApp bool `koanf:"default_app"`
}

// HTTPConfig tunes the request pipeline.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// MaxRetries is the retry budget for transient failures
	// (connection errors, read timeouts, 502 responses).
	MaxRetries int `koanf:"max_retries" validate:"gte=0"`

	// RetryDelay is the fixed backoff between attempts.
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gt=0"`

	// UserAgent overrides the default "<app>/<version>" user agent.
	UserAgent string `koanf:"user_agent"`

	// RequestsPerSecond enables client-side throttling when > 0.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
}

// TLSConfig configures transport security for HTTP and websocket dials.
type TLSConfig struct {
	// ClientCert and ClientKey enable mutual TLS when both are set.
	ClientCert string `koanf:"client_cert"`
	ClientKey  string `koanf:"client_key"`

	// ServerCA is an optional CA bundle overriding the system pool.
	ServerCA string `koanf:"server_ca"`

	// SkipVerify disables server certificate verification.
	SkipVerify bool `koanf:"skip_verify"`
}

// BreakerConfig tunes the optional circuit breaker around the pipeline.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MinRequests is the minimum sample size before the failure ratio
	// is considered statistically meaningful.
	MinRequests uint32 `koanf:"min_requests" validate:"gte=1"`

	// FailureRatio opens the circuit when reached.
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`

	// Interval resets counts while closed; Timeout is the open period
	// before a half-open probe.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LogConfig configures the library's logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns a Config with all default values applied.
// DeviceID is left empty here; Load fills it with a generated UUID
// so that explicitly constructed configs can supply their own.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:       "Jellybridge",
			Version:    "1.0.0",
			DeviceName: "Jellybridge",
			DeviceID:   "",
			DefaultApp: false,
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        5,
			RetryDelay:        time.Second,
			UserAgent:         "",
			RequestsPerSecond: 0, // unlimited
		},
		TLS: TLSConfig{
			SkipVerify: false,
		},
		Breaker: BreakerConfig{
			Enabled:      false,
			MinRequests:  10,
			FailureRatio: 0.6,
			Interval:     time.Minute,
			Timeout:      2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// EnsureDeviceID fills App.DeviceID with a generated UUID when empty.
func (c *Config) EnsureDeviceID() {
	if c.App.DeviceID == "" {
		c.App.DeviceID = uuid.NewString()
	}
}

// UserAgent returns the configured user agent, defaulting to
// "<app name>/<version>".
func (c *Config) UserAgent() string {
	if c.HTTP.UserAgent != "" {
		return c.HTTP.UserAgent
	}
	return c.App.Name + "/" + c.App.Version
}
