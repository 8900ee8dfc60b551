package keybackend

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// EphemeralKeyID names the key generated when no signing keys are configured.
const EphemeralKeyID = "ephemeral"

// KeysConfig holds configuration for loading signing keys.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline"` // Inline key pairs from config
	File   string    `mapstructure:"file"`   // Path to JSON file containing key pairs
	Active string    `mapstructure:"active"` // Key id new tokens are signed with
}

// NewSecretStore creates a MapSecretStore from the given configuration and
// returns it together with the id of the key to sign with.
//
// Keys are loaded from both inline config and file (if specified), merged into
// a single store. File keys take precedence over inline keys if there are
// duplicates. The active key defaults to the only key when exactly one is
// configured. With no keys at all a random secret is generated; tokens signed
// with it do not survive a restart.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, string, error) {
	keys := make(map[string]string)

	for _, p := range cfg.Inline {
		if p.KeyID != "" && p.Secret != "" {
			keys[p.KeyID] = p.Secret
		}
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, "", err
		}
		for k, v := range fileKeys {
			keys[k] = v
		}
	}

	if len(keys) == 0 {
		secret, err := randomSecret()
		if err != nil {
			return nil, "", fmt.Errorf("generate signing key: %w", err)
		}
		slog.Warn("no signing keys configured, using an ephemeral key")
		keys[EphemeralKeyID] = secret
		return NewMapSecretStore(keys), EphemeralKeyID, nil
	}

	active := cfg.Active
	if active == "" {
		if len(keys) > 1 {
			return nil, "", errors.New("new secret store: active key id is required when several keys are configured")
		}
		for id := range keys {
			active = id
		}
	}

	if _, ok := keys[active]; !ok {
		return nil, "", fmt.Errorf("new secret store: active key %q: %w", active, ErrKeyNotFound)
	}

	return NewMapSecretStore(keys), active, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
