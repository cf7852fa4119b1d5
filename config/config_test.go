// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "Jellybridge" {
		t.Errorf("expected default app name, got %q", cfg.App.Name)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.App.DeviceID == "" {
		t.Error("expected a generated device id")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("JELLYBRIDGE_APP_NAME", "CustomApp")
	t.Setenv("JELLYBRIDGE_HTTP_MAX_RETRIES", "2")
	t.Setenv("JELLYBRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "CustomApp" {
		t.Errorf("expected env override for app name, got %q", cfg.App.Name)
	}
	if cfg.HTTP.MaxRetries != 2 {
		t.Errorf("expected env override for retries, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected env override for log level, got %q", cfg.Log.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jellybridge.yaml")
	yaml := "app:\n  name: FromFile\nhttp:\n  timeout: 10s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "FromFile" {
		t.Errorf("expected file override for app name, got %q", cfg.App.Name)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("expected file override for timeout, got %v", cfg.HTTP.Timeout)
	}
	// Untouched fields keep their defaults.
	if cfg.HTTP.MaxRetries != 5 {
		t.Errorf("expected default retries, got %d", cfg.HTTP.MaxRetries)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jellybridge.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: FromFile\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("JELLYBRIDGE_APP_NAME", "FromEnv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "FromEnv" {
		t.Errorf("environment must win over file, got %q", cfg.App.Name)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty app name", func(c *Config) { c.App.Name = "" }},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"breaker ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }},
		{"client cert without key", func(c *Config) { c.TLS.ClientCert = "/tmp/cert.pem" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JELLYBRIDGE_APP_NAME", "app.name"},
		{"JELLYBRIDGE_HTTP_MAX_RETRIES", "http.max_retries"},
		{"JELLYBRIDGE_TLS_SKIP_VERIFY", "tls.skip_verify"},
		{"JELLYBRIDGE_LOG_LEVEL", "log.level"},
	}

	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureDeviceIDKeepsExplicitValue(t *testing.T) {
	cfg := Default()
	cfg.App.DeviceID = "my-device"
	cfg.EnsureDeviceID()
	if cfg.App.DeviceID != "my-device" {
		t.Errorf("explicit device id must be kept, got %q", cfg.App.DeviceID)
	}

	cfg.App.DeviceID = ""
	cfg.EnsureDeviceID()
	if cfg.App.DeviceID == "" {
		t.Error("empty device id must be filled")
	}
}

func TestUserAgent(t *testing.T) {
	cfg := Default()
	if got := cfg.UserAgent(); got != "Jellybridge/1.0.0" {
		t.Errorf("expected default user agent, got %q", got)
	}

	cfg.HTTP.UserAgent = "custom/9.9"
	if got := cfg.UserAgent(); got != "custom/9.9" {
		t.Errorf("expected override, got %q", got)
	}
}

func TestSessionTokenLifecycle(t *testing.T) {
	s := NewSession()
	if s.Token() != "" {
		t.Error("new session must have no token")
	}

	s.SetToken("tok-1")
	if s.Token() != "tok-1" {
		t.Errorf("expected tok-1, got %q", s.Token())
	}

	s.ClearToken()
	if s.Token() != "" {
		t.Error("ClearToken must drop the token")
	}
}

func TestSessionServerTime(t *testing.T) {
	s := NewSession()
	if !s.LastServerTime().IsZero() {
		t.Error("expected zero server time initially")
	}

	now := time.Now().Truncate(time.Second)
	s.RecordServerTime(now)
	if !s.LastServerTime().Equal(now) {
		t.Errorf("expected %v, got %v", now, s.LastServerTime())
	}
}
