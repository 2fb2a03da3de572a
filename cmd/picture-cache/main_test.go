package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/picture-cache/internal/adapter/sqlite"
	"github.com/vertextoedge/picture-cache/internal/domain"
)

func writeConfig(t *testing.T, external, internal string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `storage:
  external_mount_point: ` + external + `
  internal_cache_dir: ` + internal + `
  internal_cap: 1KiB
  margin: "0"
logging:
  level: error
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlanCommand_FallsBackToInternal(t *testing.T) {
	internal := t.TempDir()
	cfg := writeConfig(t, filepath.Join(t.TempDir(), "no-sdcard"), internal)

	out, err := runCommand(t, "plan", "--json", "--config", cfg)
	require.NoError(t, err)

	var plan struct {
		Tier            string `json:"tier"`
		RootPath        string `json:"root_path"`
		RequestedBytes  int64  `json:"requested_bytes"`
		PreferDiskCache bool   `json:"prefer_disk_cache"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, "internal", plan.Tier)
	assert.Equal(t, internal, plan.RootPath)
	assert.Equal(t, int64(1024), plan.RequestedBytes)
	assert.False(t, plan.PreferDiskCache)
}

func TestPlanCommand_PrefersExternal(t *testing.T) {
	external := t.TempDir()
	cfg := writeConfig(t, external, t.TempDir())

	out, err := runCommand(t, "plan", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "disk cache: external tier at "+filepath.Join(external, "picture-cache"))
	assert.Contains(t, out, "prefer disk cache: true")
}

func TestPlanCommand_ReadsExistingIndex(t *testing.T) {
	internal := t.TempDir()
	store, err := sqlite.Open(filepath.Join(internal, "index.db"))
	require.NoError(t, err)
	require.NoError(t, store.Upsert(&domain.CachedImage{
		Key: "k", SourceURL: "u", Size: 512, CachePath: filepath.Join(internal, "k", "k"), Root: internal,
	}))
	require.NoError(t, store.Close())

	cfg := writeConfig(t, filepath.Join(t.TempDir(), "no-sdcard"), internal)
	out, err := runCommand(t, "plan", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "disk cache: internal tier at "+internal+", 1.0 KiB")
}

func TestPlanCommand_InvalidConfig(t *testing.T) {
	_, err := runCommand(t, "plan", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
