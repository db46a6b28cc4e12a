package jsonutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIndentWithNewline(t *testing.T) {
	t.Parallel()

	data, err := MarshalIndentWithNewline(map[string]string{"mode": "local"}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"mode\": \"local\"\n}\n", string(data))
}

func TestWriteFile_CreatesParentAndReplaces(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "channel.json")

	require.NoError(t, WriteFile(path, map[string]string{"mode": "silent"}, 0o600))
	require.NoError(t, WriteFile(path, map[string]string{"mode": "telegram"}, 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "telegram", got["mode"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}
