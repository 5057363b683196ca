// Package session persists the last successful login so a relaunch can
// resume it without prompting. Credentials are kept as a signed token in an
// OS-protected secret store; no password ever leaves the user table.
package session

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrSecretNotFound is returned by a SecretStore for a missing key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore holds small named secrets.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Store kinds accepted by NewSecretStore.
const (
	StoreKeyring = "keyring"
	StoreFile    = "file"
)

// NewSecretStore returns the store named by kind. service names the keyring
// entry; file is the path of the file store. A keyring that does not answer
// is replaced by the file store.
func NewSecretStore(kind, service, file string, log *slog.Logger) (SecretStore, error) {
	switch kind {
	case StoreKeyring:
		k := NewKeyringStore(service)
		if err := k.Available(); err != nil {
			if log != nil {
				log.Debug("keyring unavailable, keeping secrets in file", "file", file, "error", err)
			}
			return NewFileStore(file), nil
		}
		return k, nil
	case StoreFile:
		return NewFileStore(file), nil
	default:
		return nil, fmt.Errorf("unknown secret store %q", kind)
	}
}
