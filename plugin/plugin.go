// Package plugin implements the Plugin interface (spec.md §9 REDESIGN
// FLAGS): a small, explicit contract for injecting agent-scoped tools and
// system-prompt fragments — the spec's re-model of the teacher's runtime
// PluginRegistry + "memory" injection into something the core composes at
// Chat construction time instead of discovering at call time.
//
// Grounded on plugins/types.go's Plugin/PluginLoader/PluginManifest shape
// (lifecycle methods, status, manifest-driven identity) generalized from
// the teacher's five plugin kinds (llm_provider, database_provider,
// embedder_provider, tool_provider, reasoning_strategy) down to the one
// kind spec.md §9 names, and on plugins/registry.go's BaseRegistry-backed
// PluginRegistry for the in-process Manager.
package plugin

import (
	"fmt"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/registry"
	"github.com/kestrelai/swarmkit/tools"
)

// Storage is the minimal per-agent key/value surface a Plugin receives to
// back StorageEnabled/SystemPromptContribution, satisfied by
// MemoryPlugin's per-agent store and by the RPC transport's snapshotStorage.
type Storage interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Plugin is the core-facing contract spec.md §9 names as the re-modeled
// replacement for the teacher's runtime tool/prompt injection: name(),
// tools(agent_def), storage_enabled?(agent_def),
// system_prompt_contribution(agent_def, storage), and
// snapshot_state(agent)/restore_state(agent, state).
type Plugin interface {
	// Name identifies the plugin for plugin_states keying and tool Source
	// attribution.
	Name() string

	// Tools returns the named tool factories this plugin contributes for
	// agentDef, installed under tools.SourcePlugin at Chat construction.
	Tools(agentDef config.AgentConfig) map[string]tools.Factory

	// StorageEnabled reports whether agentDef should receive a Storage
	// instance (e.g. the memory plugin needs one, a stateless plugin does
	// not).
	StorageEnabled(agentDef config.AgentConfig) bool

	// SystemPromptContribution returns a fragment to append to agentDef's
	// system prompt, given its Storage if StorageEnabled returned true
	// (storage is nil otherwise).
	SystemPromptContribution(agentDef config.AgentConfig, storage Storage) string

	// SnapshotState captures agent's plugin-local state for inclusion in a
	// snapshot's plugin_states entry.
	SnapshotState(agent string) (any, error)

	// RestoreState rehydrates agent's plugin-local state from a prior
	// snapshot's plugin_states entry.
	RestoreState(agent string, state any) error
}

// Manager owns the set of loaded Plugins for one Swarm and composes their
// contributions at Chat construction time, replacing the teacher's
// call-time runtime registry lookup.
type Manager struct {
	plugins *registry.BaseRegistry[Plugin]
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{plugins: registry.NewBaseRegistry[Plugin]()}
}

// Register adds p under its own Name(), rejecting a name collision.
func (m *Manager) Register(p Plugin) error {
	if p == nil {
		return swarmerr.New(swarmerr.KindConfiguration, "plugin", "Register", "nil plugin", nil)
	}
	if err := m.plugins.Register(p.Name(), p); err != nil {
		return swarmerr.New(swarmerr.KindConfiguration, "plugin", "Register",
			fmt.Sprintf("failed to register plugin %q", p.Name()), err)
	}
	return nil
}

// Get returns the named plugin, if registered.
func (m *Manager) Get(name string) (Plugin, bool) {
	return m.plugins.Get(name)
}

// List returns every registered plugin, in no particular order.
func (m *Manager) List() []Plugin {
	return m.plugins.List()
}

// ComposeTools installs every registered plugin's contributed tool
// factories for agentDef onto reg under tools.SourcePlugin, per spec.md
// §4.1's "each chat receives... tool set (built-ins + plugin-provided +
// delegation-synthesized)". A plugin's tool name colliding with one
// already registered aborts with the underlying registration error,
// surfacing the configuration-class collision spec.md §4.2 requires.
func (m *Manager) ComposeTools(reg *tools.Registry, agentDef config.AgentConfig) ([]string, error) {
	var names []string
	for _, p := range m.plugins.List() {
		for name, factory := range p.Tools(agentDef) {
			if err := reg.Register(name, tools.SourcePlugin, factory); err != nil {
				return nil, swarmerr.New(swarmerr.KindConfiguration, "plugin", "ComposeTools",
					fmt.Sprintf("plugin %q tool %q", p.Name(), name), err)
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// ComposeSystemPrompt appends every registered plugin's
// SystemPromptContribution for agentDef to basePrompt, separated by blank
// lines. Plugins are visited in no particular order, so the order of
// contributions from several plugins is not defined.
func (m *Manager) ComposeSystemPrompt(basePrompt string, agentDef config.AgentConfig, storageFor func(pluginName string) Storage) string {
	prompt := basePrompt
	for _, p := range m.plugins.List() {
		var storage Storage
		if p.StorageEnabled(agentDef) && storageFor != nil {
			storage = storageFor(p.Name())
		}
		contribution := p.SystemPromptContribution(agentDef, storage)
		if contribution == "" {
			continue
		}
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += contribution
	}
	return prompt
}

// SnapshotStates captures every registered plugin's state for agent, keyed
// by plugin name, for a snapshot's plugin_states[*][agent] entry.
func (m *Manager) SnapshotStates(agent string) (map[string]any, error) {
	out := make(map[string]any)
	for _, p := range m.plugins.List() {
		state, err := p.SnapshotState(agent)
		if err != nil {
			return nil, swarmerr.New(swarmerr.KindState, "plugin", "SnapshotStates",
				fmt.Sprintf("plugin %q failed to snapshot state for agent %q", p.Name(), agent), err)
		}
		if state != nil {
			out[p.Name()] = state
		}
	}
	return out, nil
}

// RestoreStates replays states (keyed by plugin name) for agent onto every
// matching registered plugin. Unknown plugin names and failed restores are
// returned as warnings rather than raised, consistent with Restore's
// never-raise-on-partial-mismatch policy.
func (m *Manager) RestoreStates(agent string, states map[string]any) []string {
	var warnings []string
	for name, state := range states {
		p, ok := m.plugins.Get(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("plugin_not_found: %s", name))
			continue
		}
		if err := p.RestoreState(agent, state); err != nil {
			warnings = append(warnings, fmt.Sprintf("plugin_restore_failed: %s: %v", name, err))
		}
	}
	return warnings
}
