// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its struct tags and the
// cross-field constraints the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q constraint", ve.Namespace(), ve.Tag())
		}
		return err
	}

	// Mutual TLS needs both halves of the key pair.
	if (c.TLS.ClientCert == "") != (c.TLS.ClientKey == "") {
		return errors.New("invalid config: tls.client_cert and tls.client_key must be set together")
	}

	return nil
}
