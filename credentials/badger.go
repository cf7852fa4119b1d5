// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package credentials

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// credentialKey is the single document key; the credential set is small
// and always read/written whole.
var credentialKey = []byte("credentials/v1")

// BadgerStore persists the credential document in a local badger
// database. When constructed with a secret, access and exchange tokens
// are encrypted at rest with a TokenCipher; all other fields stay
// plaintext so the document remains inspectable.
type BadgerStore struct {
	db     *badger.DB
	cipher *TokenCipher
}

var _ Persister = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the database at dir. An empty
// secret disables token encryption.
func OpenBadgerStore(dir, secret string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	var cipher *TokenCipher
	if secret != "" {
		cipher, err = NewTokenCipher(secret)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &BadgerStore{db: db, cipher: cipher}, nil
}

// Load reads the credential document. A missing key yields an empty set.
func (b *BadgerStore) Load() (CredentialSet, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return CredentialSet{}, nil
	}
	if err != nil {
		return CredentialSet{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	var cs CredentialSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return CredentialSet{}, fmt.Errorf("failed to decode credentials: %w", err)
	}

	if b.cipher != nil {
		for i := range cs.Servers {
			if err := b.transformTokens(&cs.Servers[i], b.cipher.Decrypt); err != nil {
				return CredentialSet{}, err
			}
		}
	}
	return cs, nil
}

// Save writes the credential document, encrypting tokens when configured.
func (b *BadgerStore) Save(cs CredentialSet) error {
	out := cs.Clone()
	if b.cipher != nil {
		for i := range out.Servers {
			if err := b.transformTokens(&out.Servers[i], b.cipher.Encrypt); err != nil {
				return err
			}
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// transformTokens applies fn to the record's token fields in place.
func (b *BadgerStore) transformTokens(rec *ServerRecord, fn func(string) (string, error)) error {
	access, err := fn(rec.AccessToken)
	if err != nil {
		return fmt.Errorf("server %s access token: %w", rec.ID, err)
	}
	exchange, err := fn(rec.ExchangeToken)
	if err != nil {
		return fmt.Errorf("server %s exchange token: %w", rec.ID, err)
	}
	rec.AccessToken = access
	rec.ExchangeToken = exchange
	return nil
}
