package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_WriteReadDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	m, err := NewManager(root)
	require.NoError(t, err)
	assert.DirExists(t, root)

	key := "ab12cd34"
	path, n, err := m.WriteFile(key, strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, filepath.Join(root, "ab", key), path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+tempSuffix)

	data, err := m.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	size, err := m.GetCacheSize()
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	require.NoError(t, m.DeleteFile(path))
	assert.NoFileExists(t, path)
	require.NoError(t, m.DeleteFile(path), "deleting a missing file is not an error")
}

func TestManager_CleanOldTempFiles(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	oldTemp := filepath.Join(m.RootDir(), "old"+tempSuffix)
	newTemp := filepath.Join(m.RootDir(), "new"+tempSuffix)
	require.NoError(t, os.WriteFile(oldTemp, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(newTemp, []byte("y"), 0644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldTemp, past, past))

	size, err := m.GetCacheSize()
	require.NoError(t, err)
	assert.Zero(t, size, "temp files are not counted as cache content")

	count, err := m.CleanOldTempFiles(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoFileExists(t, oldTemp)
	assert.FileExists(t, newTemp)
}

func TestManager_KeysSkipsForeignFiles(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, _, err = m.WriteFile("ab12", strings.NewReader("12345"))
	require.NoError(t, err)
	_, _, err = m.WriteFile("x", strings.NewReader("123"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.RootDir(), "x", "x"), m.CachePath("x"))

	require.NoError(t, os.WriteFile(filepath.Join(m.RootDir(), "index.db"), []byte("sqlite"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(m.RootDir(), "ab", "stray"), []byte("?"), 0644))
	require.NoError(t, os.WriteFile(m.CachePath("ab56")+tempSuffix, []byte("partial"), 0644))

	keys, err := m.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ab12", "x"}, keys)

	size, err := m.GetCacheSize()
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func TestPaths(t *testing.T) {
	p := Paths{External: "/mnt/sd/pictures", Internal: "/var/cache/pictures"}
	assert.Equal(t, "/mnt/sd/pictures", p.ExternalCacheRoot())
	assert.Equal(t, "/var/cache/pictures", p.InternalCacheRoot())
}
