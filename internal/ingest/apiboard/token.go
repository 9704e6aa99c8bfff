// internal/ingest/apiboard/token.go
package apiboard

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

// KeyringService is the service name under which API tokens are stored.
const KeyringService = "harvester"

// TokenSource supplies an API credential for a structured source.
type TokenSource interface {
	Token() (string, error)
}

// KeyringToken reads a bearer token from the OS keyring. Token absence is not
// an error: the adapter falls back to anonymous access.
type KeyringToken struct {
	Account string
}

func (k KeyringToken) Token() (string, error) {
	tok, err := keyring.Get(KeyringService, k.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		log.Debug().Str("account", k.Account).Err(err).Msg("Keyring lookup failed")
		return "", err
	}
	return tok, nil
}

// StoreToken saves a token for the named source account.
func StoreToken(account, token string) error {
	return keyring.Set(KeyringService, account, token)
}

// DeleteToken removes a stored token. Deleting a missing token is not an
// error.
func DeleteToken(account string) error {
	err := keyring.Delete(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// StaticToken is a fixed token for tests and env-provided credentials.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }
