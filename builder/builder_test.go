package builder

import (
	"testing"

	"github.com/kestrelai/swarmkit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentBuilder_BuildAppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	agent, err := NewAgent("researcher").
		WithModel("gpt-4o-mini").
		WithProvider("openai").
		WithWorkingDir(dir).
		WithDelegatesTo("writer").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "researcher", agent.Name)
	assert.Equal(t, 300_000_000_000, int(agent.Timeout)) // 300s in ns
	assert.Equal(t, 4, agent.MaxConcurrency)
}

func TestAgentBuilder_BuildRejectsMissingModel(t *testing.T) {
	_, err := NewAgent("researcher").WithProvider("openai").Build()
	assert.Error(t, err)
}

func TestAgentBuilder_NewAgentPanicsOnEmptyName(t *testing.T) {
	assert.Panics(t, func() { NewAgent("") })
}

func TestSwarmBuilder_BuildWiresProvidersAgentsAndLead(t *testing.T) {
	dir := t.TempDir()
	lead := NewAgent("lead").WithModel("gpt-4o").WithProvider("openai").WithWorkingDir(dir).MustBuild()
	researcher := NewAgent("researcher").WithModel("gpt-4o-mini").WithProvider("openai").WithWorkingDir(dir).MustBuild()

	cfg, err := NewSwarm("research-team").
		WithProvider("openai", config.LLMProviderConfig{Type: "openai", Model: "gpt-4o-mini"}).
		WithAgent(lead).
		WithAgent(researcher).
		WithLead("lead").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "lead", cfg.Lead)
	assert.Len(t, cfg.Agents, 2)
}

func TestSwarmBuilder_BuildRejectsUnknownDelegationTarget(t *testing.T) {
	dir := t.TempDir()
	lead := NewAgent("lead").WithModel("gpt-4o").WithProvider("openai").WithWorkingDir(dir).
		WithDelegatesTo("ghost").MustBuild()

	_, err := NewSwarm("broken").
		WithProvider("openai", config.LLMProviderConfig{Type: "openai", Model: "gpt-4o-mini"}).
		WithAgent(lead).
		Build()
	assert.Error(t, err)
}

func TestValidate_RejectsMissingWorkingDirectory(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.LLMProviderConfig{"openai": {Type: "openai", Model: "gpt-4o-mini"}},
		Agents: map[string]config.AgentConfig{
			"lead": {Name: "lead", Model: "gpt-4o", Provider: "openai", WorkingDir: "/does/not/exist/ever"},
		},
		Lead: "lead",
	}
	cfg.SetDefaults()
	err := Validate(cfg, DefaultValidateOptions())
	assert.Error(t, err)
}

func TestValidate_SkipsFilesystemCheckWhenDisabled(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.LLMProviderConfig{"openai": {Type: "openai", Model: "gpt-4o-mini"}},
		Agents: map[string]config.AgentConfig{
			"lead": {Name: "lead", Model: "gpt-4o", Provider: "openai", WorkingDir: "/does/not/exist/ever"},
		},
		Lead: "lead",
	}
	cfg.SetDefaults()
	err := Validate(cfg, ValidateOptions{CheckFilesystem: false})
	assert.NoError(t, err)
}
