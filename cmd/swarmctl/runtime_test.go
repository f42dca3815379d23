package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwarmHome_PrefersRootDirThenEnvThenDefault(t *testing.T) {
	home, err := swarmHome("/explicit/dir")
	require.NoError(t, err)
	assert.Equal(t, "/explicit/dir", home)

	t.Setenv("SWARM_HOME", "/from/env")
	home, err = swarmHome("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", home)

	t.Setenv("SWARM_HOME", "")
	home, err = swarmHome("")
	require.NoError(t, err)
	assert.Contains(t, home, defaultSwarmDir)
}

func TestSessionMeta_SaveLoadRoundTrips(t *testing.T) {
	home := t.TempDir()
	meta := &sessionMeta{
		ID:         "sess-1",
		ConfigPath: "swarm.yaml",
		SwarmName:  "demo",
		Status:     "running",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, saveSessionMeta(home, meta))

	loaded, err := loadSessionMeta(home, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, meta.ID, loaded.ID)
	assert.Equal(t, meta.SwarmName, loaded.SwarmName)
}

func TestListSessionIDs_EmptyWhenNoSessionsDir(t *testing.T) {
	home := t.TempDir()
	ids, err := listSessionIDs(home)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListSessionIDs_ReturnsSortedDirectoryNames(t *testing.T) {
	home := t.TempDir()
	for _, id := range []string{"b-session", "a-session"} {
		require.NoError(t, os.MkdirAll(filepath.Join(sessionsDir(home), id), 0o755))
	}
	ids, err := listSessionIDs(home)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-session", "b-session"}, ids)
}

func TestNewToolRegistry_RegistersBuiltins(t *testing.T) {
	reg := newToolRegistry()
	names := reg.Names()
	assert.Contains(t, names, "bash")
	assert.Contains(t, names, "read_file")
	assert.Contains(t, names, "edit_file")
}

func TestLoadAndValidate_RejectsMissingFile(t *testing.T) {
	_, err := loadAndValidate("/does/not/exist.yaml")
	assert.Error(t, err)
}
