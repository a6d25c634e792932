package safeio

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileContained(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "sub", "go.mod"), []byte("module x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644))

	data, err := ReadFileContained(base, filepath.Join(base, "sub", "go.mod"))
	require.NoError(t, err)
	assert.Equal(t, "module x\n", string(data))

	_, err = ReadFileContained(base, filepath.Join(base, "..", filepath.Base(outside), "secret"))
	assert.ErrorIs(t, err, ErrOutsideBase)

	_, err = ReadFileContained(base, filepath.Join(base, "missing"))
	assert.Error(t, err)

	if runtime.GOOS != "windows" {
		link := filepath.Join(base, "link")
		require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), link))
		_, err = ReadFileContained(base, link)
		assert.ErrorIs(t, err, ErrOutsideBase)
	}
}

func TestWriteFilePreservePerms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	require.NoError(t, WriteFilePreservePerms(path, []byte("{}")))
	st, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o644), st.Mode().Perm())
		require.NoError(t, os.Chmod(path, 0o600))
	}

	require.NoError(t, WriteFilePreservePerms(path, []byte(`{"a":1}`)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	if runtime.GOOS != "windows" {
		st, err = os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
	}

	assert.Error(t, WriteFilePreservePerms(filepath.Join(dir, "nope", "x"), nil))
}
