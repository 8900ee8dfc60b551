package keybackend

import (
	"encoding/json"
	"fmt"
	"os"
)

// KeyPair is a signing key id and its secret.
type KeyPair struct {
	KeyID  string `json:"key_id" mapstructure:"key_id"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// LoadKeysFromFile loads signing keys from a JSON file.
// The file should contain an array of key pairs:
//
//	[
//	  {"key_id": "2026-01", "secret": "c2VjcmV0..."},
//	  {"key_id": "2026-07", "secret": "bW9yZS1zZWNyZXQ..."}
//	]
//
// Returns a map of key id to secret. Entries with an empty id or secret are skipped.
func LoadKeysFromFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var pairs []KeyPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	keys := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.KeyID != "" && p.Secret != "" {
			keys[p.KeyID] = p.Secret
		}
	}

	return keys, nil
}
