package session

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "staybook"

// KeyringStore keeps each key as its own keychain entry, scoped to an origin
// so sessions against different API hosts never mix.
type KeyringStore struct {
	origin string
}

// NewKeyringStore creates a keyring-backed store for origin.
func NewKeyringStore(origin string) *KeyringStore {
	return &KeyringStore{origin: origin}
}

func (s *KeyringStore) account(key string) string {
	return fmt.Sprintf("%s::%s", s.origin, key)
}

// Get returns the value stored under key.
func (s *KeyringStore) Get(key string) (string, bool, error) {
	v, err := keyring.Get(serviceName, s.account(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring read %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(serviceName, s.account(key), value); err != nil {
		return fmt.Errorf("keyring write %s: %w", key, err)
	}
	return nil
}

// Remove deletes every key, ignoring keys that are already absent.
func (s *KeyringStore) Remove(keys ...string) error {
	var errs []error
	for _, k := range keys {
		err := keyring.Delete(serviceName, s.account(k))
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			errs = append(errs, fmt.Errorf("keyring delete %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
