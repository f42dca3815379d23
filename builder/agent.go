// Package builder implements the Builder DSL / Config Validator (spec.md
// §2-3): a fluent, discoverable Go API for programmatic agent/swarm
// construction that terminates in the same config.Config/config.AgentConfig
// structs the YAML loader produces, plus a Validate pass that combines
// config.Config.Validate, delegation.ValidateConfig's topology check, and
// the filesystem/tool-permission checks spec.md §4.1 names as part of
// construct-time validation ("validate definitions, topology, and
// filesystem-tool permissions").
//
// Grounded on the teacher's pkg/builder/agent.go (chainable WithX methods
// over a private struct, Build()/MustBuild() pair, panic on nil required
// collaborators passed to constructors) generalized from building a
// pkg/agent.Agent to building a config.AgentConfig.
package builder

import (
	"fmt"
	"time"

	"github.com/kestrelai/swarmkit/config"
)

// AgentBuilder provides a fluent API for building one Agent Definition.
//
// Example:
//
//	agent, err := builder.NewAgent("researcher").
//	    WithModel("gpt-4o-mini").
//	    WithProvider("openai").
//	    WithSystemPrompt("You are a careful researcher.").
//	    WithWorkingDir("/workspace").
//	    WithTool("read_file", config.ToolPermissions{}).
//	    WithDelegatesTo("writer").
//	    Build()
type AgentBuilder struct {
	name        string
	description string
	model       string
	provider    string

	systemPrompt string
	workingDir   string

	tools       []config.ToolRef
	delegatesTo []string
	mcpServers  []config.MCPServerConfig
	pluginTools []string

	hooks map[config.HookEvent][]config.HookConfig

	timeout        time.Duration
	maxConcurrency int
	flags          config.AgentFlags
}

// NewAgent starts building the named agent. Panics if name is empty, the
// same "fail fast on a missing required collaborator" texture the
// teacher's NewRunner/NewAgent constructors use.
func NewAgent(name string) *AgentBuilder {
	if name == "" {
		panic("agent name cannot be empty")
	}
	return &AgentBuilder{name: name, hooks: make(map[config.HookEvent][]config.HookConfig)}
}

func (b *AgentBuilder) WithDescription(d string) *AgentBuilder { b.description = d; return b }
func (b *AgentBuilder) WithModel(m string) *AgentBuilder       { b.model = m; return b }
func (b *AgentBuilder) WithProvider(p string) *AgentBuilder    { b.provider = p; return b }
func (b *AgentBuilder) WithSystemPrompt(p string) *AgentBuilder {
	b.systemPrompt = p
	return b
}
func (b *AgentBuilder) WithWorkingDir(dir string) *AgentBuilder { b.workingDir = dir; return b }

// WithTool adds one tool reference with per-tool permissions (e.g.
// allowed-paths), per spec.md §3's "tool list (each entry: tool name +
// optional per-tool permissions)".
func (b *AgentBuilder) WithTool(name string, perms config.ToolPermissions) *AgentBuilder {
	b.tools = append(b.tools, config.ToolRef{Name: name, Permissions: perms})
	return b
}

func (b *AgentBuilder) WithDelegatesTo(names ...string) *AgentBuilder {
	b.delegatesTo = append(b.delegatesTo, names...)
	return b
}

func (b *AgentBuilder) WithMCPServer(server config.MCPServerConfig) *AgentBuilder {
	b.mcpServers = append(b.mcpServers, server)
	return b
}

func (b *AgentBuilder) WithPluginTool(name string) *AgentBuilder {
	b.pluginTools = append(b.pluginTools, name)
	return b
}

func (b *AgentBuilder) WithHook(event config.HookEvent, hook config.HookConfig) *AgentBuilder {
	b.hooks[event] = append(b.hooks[event], hook)
	return b
}

func (b *AgentBuilder) WithTimeout(d time.Duration) *AgentBuilder { b.timeout = d; return b }
func (b *AgentBuilder) WithMaxConcurrency(n int) *AgentBuilder    { b.maxConcurrency = n; return b }

func (b *AgentBuilder) WithFlags(flags config.AgentFlags) *AgentBuilder {
	b.flags = flags
	return b
}

// Build validates and returns the assembled AgentConfig, with SetDefaults
// already applied (timeout 300s, concurrency 4, per-entry tool/MCP/hook
// defaults), per spec.md §3's default timeout.
func (b *AgentBuilder) Build() (config.AgentConfig, error) {
	cfg := config.AgentConfig{
		Name:           b.name,
		Description:    b.description,
		Model:          b.model,
		Provider:       b.provider,
		SystemPrompt:   b.systemPrompt,
		WorkingDir:     b.workingDir,
		Tools:          b.tools,
		DelegatesTo:    b.delegatesTo,
		MCPServers:     b.mcpServers,
		PluginTools:    b.pluginTools,
		Hooks:          b.hooks,
		Timeout:        b.timeout,
		MaxConcurrency: b.maxConcurrency,
		Flags:          b.flags,
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return config.AgentConfig{}, fmt.Errorf("builder: agent %q: %w", b.name, err)
	}
	return cfg, nil
}

// MustBuild builds the AgentConfig or panics. Use only when the definition
// is known-valid (e.g. constants assembled at package init).
func (b *AgentBuilder) MustBuild() config.AgentConfig {
	cfg, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("builder: failed to build agent %q: %v", b.name, err))
	}
	return cfg
}
