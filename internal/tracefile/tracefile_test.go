package tracefile

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const traceContent = "00;0;1;100;1000\n01;0;1;100;2000\n"

func readAll(t *testing.T, path string) string {
	t.Helper()
	rc, err := Open(path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return string(data)
}

func TestOpen_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte(traceContent), 0o600))

	assert.Equal(t, traceContent, readAll(t, path))
}

func TestOpen_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(traceContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	assert.Equal(t, traceContent, readAll(t, path))
}

func TestOpen_Zstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = zw.Write([]byte(traceContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	assert.Equal(t, traceContent, readAll(t, path))
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestOpen_CorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o600))

	_, err := Open(path)
	assert.ErrorContains(t, err, "opening gzip stream")
}
