// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package credentials

import (
	"errors"
	"testing"
	"time"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher("app-secret")
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	sealed, err := cipher.Encrypt("access-token-123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == "access-token-123" {
		t.Fatal("ciphertext equals plaintext")
	}

	plain, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	checkStringEqual(t, "plaintext", plain, "access-token-123")
}

func TestTokenCipherEmptyPassthrough(t *testing.T) {
	cipher, err := NewTokenCipher("app-secret")
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	sealed, err := cipher.Encrypt("")
	if err != nil || sealed != "" {
		t.Errorf("empty plaintext should pass through, got %q, %v", sealed, err)
	}
	plain, err := cipher.Decrypt("")
	if err != nil || plain != "" {
		t.Errorf("empty ciphertext should pass through, got %q, %v", plain, err)
	}
}

func TestTokenCipherWrongSecret(t *testing.T) {
	enc, err := NewTokenCipher("secret-a")
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	dec, err := NewTokenCipher("secret-b")
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	sealed, err := enc.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := dec.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestTokenCipherEmptySecret(t *testing.T) {
	if _, err := NewTokenCipher(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir(), "app-secret")
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	in := CredentialSet{Servers: []ServerRecord{{
		ID:               "s1",
		Name:             "Den",
		Address:          "http://den:8096",
		AccessToken:      "secret-token",
		DateLastAccessed: NewTimestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Users:            []UserRecord{{ID: "u1", IsSignedInOffline: true}},
	}}}

	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(out.Servers))
	}
	checkStringEqual(t, "Name", out.Servers[0].Name, "Den")
	checkStringEqual(t, "AccessToken", out.Servers[0].AccessToken, "secret-token")
	if len(out.Servers[0].Users) != 1 {
		t.Errorf("expected 1 user, got %d", len(out.Servers[0].Users))
	}
}

func TestBadgerStoreLoadEmpty(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out.Servers) != 0 {
		t.Errorf("fresh store should be empty, got %d servers", len(out.Servers))
	}
}

func TestBadgerStoreTokensEncryptedAtRest(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir, "app-secret")
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	in := CredentialSet{Servers: []ServerRecord{{ID: "s1", AccessToken: "secret-token"}}}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen without the secret: the raw document must not expose the token.
	plain, err := OpenBadgerStore(dir, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = plain.Close() }()

	out, err := plain.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Servers[0].AccessToken == "secret-token" {
		t.Error("access token stored in plaintext")
	}
}
