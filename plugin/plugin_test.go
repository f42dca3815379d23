package plugin

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ComposeToolsInstallsPluginFactories(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(NewMemoryPlugin()))

	reg := tools.NewRegistry()
	agentDef := config.AgentConfig{Name: "researcher"}

	names, err := m.ComposeTools(reg, agentDef)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"remember", "recall"}, names)

	tool, err := reg.Instantiate("remember", tools.Context{AgentName: "researcher"})
	require.NoError(t, err)
	result, err := tool.Execute(context.Background(), map[string]any{"key": "k", "value": "v"})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "k")
}

func TestManager_ComposeSystemPromptAppendsContribution(t *testing.T) {
	mp := NewMemoryPlugin()
	m := NewManager()
	require.NoError(t, m.Register(mp))

	agentDef := config.AgentConfig{Name: "researcher"}
	prompt := m.ComposeSystemPrompt("Base prompt.", agentDef, func(name string) Storage {
		return mp.storageFor("researcher")
	})
	assert.Contains(t, prompt, "Base prompt.")
	assert.Contains(t, prompt, "remember and recall")
}

func TestMemoryPlugin_SnapshotRestoreStateRoundTrips(t *testing.T) {
	mp := NewMemoryPlugin()
	storage := mp.storageFor("agentA")
	storage.Set("fact", "the sky is blue")

	state, err := mp.SnapshotState("agentA")
	require.NoError(t, err)
	require.NotNil(t, state)

	fresh := NewMemoryPlugin()
	require.NoError(t, fresh.RestoreState("agentA", state))

	v, ok := fresh.storageFor("agentA").Get("fact")
	require.True(t, ok)
	assert.Equal(t, "the sky is blue", v)
}

func TestManager_RestoreStatesWarnsOnUnknownPlugin(t *testing.T) {
	m := NewManager()
	warnings := m.RestoreStates("agentA", map[string]any{"nonexistent": map[string]any{}})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "plugin_not_found")
}
