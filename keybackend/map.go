// Package keybackend provides SecretStore implementations holding the keys
// privilege tokens are signed with.
package keybackend

import (
	"fmt"
)

// MapSecretStore retrieves signing secrets from an in-memory map.
// Suitable for configuration file-based key storage.
type MapSecretStore struct {
	keys map[string]string
}

// NewMapSecretStore creates a new map-based secret store with the given key id to secret mapping.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	return &MapSecretStore{keys: keys}
}

// Lookup retrieves the secret for the given key id from the map.
func (s *MapSecretStore) Lookup(keyID string) (string, error) {
	secret, found := s.keys[keyID]
	if !found {
		return "", fmt.Errorf("key id %q: %w", keyID, ErrKeyNotFound)
	}
	return secret, nil
}

// Len returns the number of keys in the store.
func (s *MapSecretStore) Len() int {
	return len(s.keys)
}
