package session

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// availabilityKey is read to check that a keyring service answers.
const availabilityKey = "availability"

// KeyringStore keeps secrets in the OS keychain (Keychain, Secret Service,
// Windows Credential Manager).
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store whose entries are grouped under service.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// Available returns an error when no keyring service answers on this host,
// as on a headless machine without a secret service.
func (k *KeyringStore) Available() error {
	_, err := keyring.Get(k.service, availabilityKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Get implements SecretStore.
func (k *KeyringStore) Get(key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	return v, err
}

// Set implements SecretStore.
func (k *KeyringStore) Set(key, value string) error {
	return keyring.Set(k.service, key, value)
}

// Delete implements SecretStore.
func (k *KeyringStore) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
