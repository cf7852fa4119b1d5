// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// tokenCipherSalt binds derived keys to this library's token
	// encryption use case.
	tokenCipherSalt = "jellybridge-server-credentials"

	// tokenCipherInfo is the HKDF info parameter for key derivation.
	tokenCipherInfo = "token-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptySecret is returned when an empty secret is provided.
	ErrEmptySecret = errors.New("credentials: cipher secret cannot be empty")

	// ErrDecryptionFailed is returned for tampered or foreign ciphertext.
	ErrDecryptionFailed = errors.New("credentials: decryption failed")

	// ErrInvalidCiphertext is returned when the ciphertext format is invalid.
	ErrInvalidCiphertext = errors.New("credentials: invalid ciphertext format")
)

// TokenCipher provides AES-256-GCM encryption for access and exchange
// tokens stored at rest. The key is derived from an application secret
// via HKDF-SHA256, so tokens are only readable by the application that
// wrote them.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives a 256-bit AES key from secret and returns a
// ready cipher.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	kdf := hkdf.New(sha256.New, []byte(secret), []byte(tokenCipherSalt), []byte(tokenCipherInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag) for plaintext.
// Empty plaintext passes through unchanged so absent tokens stay absent.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Empty ciphertext passes through unchanged.
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCiphertext, err.Error())
	}
	if len(data) < gcmNonceSize+c.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := c.aead.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
