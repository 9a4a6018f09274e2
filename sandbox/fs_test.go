package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealFileSystem(t *testing.T) {
	var fs FileSystem = RealFileSystem{}

	dir, err := fs.MkdirTemp(t.TempDir(), "judgebox-")
	require.NoError(t, err)

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, fs.MkdirAll(nested, DirPermission))

	file := filepath.Join(nested, "in.txt")
	exists, err := fs.FileExists(file)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.WriteFile(file, []byte("5\n"), FilePermission))
	exists, err = fs.FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fs.RemoveAll(dir))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
