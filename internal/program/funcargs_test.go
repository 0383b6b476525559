package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFunctionInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions.json")
	content := `[
		{"name": "fact", "arguments": [{"name": "n", "type": "int", "index": 0}]},
		{"name": "greet", "arguments": [{"name": "msg", "type": "char*", "index": 0}]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	infos, err := LoadFunctionInfo(path)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	fact := infos["fact"]
	require.Len(t, fact.Arguments, 1)
	assert.Equal(t, "n", fact.Arguments[0].Name)
	assert.Equal(t, "int", fact.Arguments[0].Type)
	assert.Equal(t, 0, fact.Arguments[0].Index)
}

func TestLoadFunctionInfo_MissingFile(t *testing.T) {
	_, err := LoadFunctionInfo(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadFunctionInfo_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadFunctionInfo(path)
	assert.Error(t, err)
}
