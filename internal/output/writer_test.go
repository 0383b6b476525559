package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pintrace/internal/profile"
)

func TestWriter_EmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(profile.Record{"uid": "main", "amount": uint64(100)}))
	require.NoError(t, w.Write(profile.Record{"uid": "helper", "amount": uint64(40)}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "main", first["uid"])
	assert.Equal(t, float64(100), first["amount"])
}

func TestWriter_FlushWithoutRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Flush())
	assert.Empty(t, buf.String())
}
