package keybackend_test

import (
	"testing"

	"github.com/sagarc03/warden/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeysFromFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    map[string]string
	}{
		{
			name: "two keys",
			content: `[
				{"key_id": "2026-01", "secret": "first"},
				{"key_id": "2026-07", "secret": "second"}
			]`,
			want: map[string]string{"2026-01": "first", "2026-07": "second"},
		},
		{
			name:    "empty array",
			content: `[]`,
			want:    map[string]string{},
		},
		{
			name: "skips entries missing id or secret",
			content: `[
				{"key_id": "", "secret": "orphan"},
				{"key_id": "no-secret", "secret": ""},
				{"key_id": "ok", "secret": "kept"}
			]`,
			want: map[string]string{"ok": "kept"},
		},
		{
			name: "last duplicate wins",
			content: `[
				{"key_id": "dup", "secret": "first"},
				{"key_id": "dup", "secret": "second"}
			]`,
			want: map[string]string{"dup": "second"},
		},
		{
			name:    "extra fields ignored",
			content: `[{"key_id": "k", "secret": "s", "comment": "rotated monthly", "n": 1}]`,
			want:    map[string]string{"k": "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeKeysFile(t, tt.content)

			keys, err := keybackend.LoadKeysFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestLoadKeysFromFile_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := keybackend.LoadKeysFromFile("/nonexistent/path/keys.json")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read keys file")
}

func TestLoadKeysFromFile_InvalidJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "this is not json"},
		{name: "object instead of array", content: `{"key_id": "k", "secret": "s"}`},
		{name: "truncated", content: `[{"key_id": "k", "secret": "s"`},
		{name: "array of strings", content: `["k1", "k2"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeKeysFile(t, tt.content)

			_, err := keybackend.LoadKeysFromFile(path)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "parse keys file")
		})
	}
}
