// Package config provides configuration types and utilities for the agent
// orchestration framework. This file contains the declarative configuration
// surface: Agent Definitions, Workflow/Node definitions, hook bindings, and
// provider configuration. Every type here follows the same pattern —
// Validate() checks correctness, SetDefaults() fills in zero values — so the
// external YAML loader (out of scope for this module) can decode into these
// structs and call both before construction proceeds.
package config

import (
	"fmt"
	"time"
)

// ============================================================================
// PROVIDER CONFIGURATION
// ============================================================================

// LLMProviderConfig describes how to reach an LLM provider.
type LLMProviderConfig struct {
	Type            string            `yaml:"type"` // "openai", "anthropic", "ollama", ...
	Model           string            `yaml:"model"`
	APIKey          string            `yaml:"api_key,omitempty"`
	BaseURL         string            `yaml:"base_url,omitempty"`
	APIVersion      string            `yaml:"api_version,omitempty"`
	Temperature     *float64          `yaml:"temperature,omitempty"`
	ReasoningEffort string            `yaml:"reasoning_effort,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Params          map[string]any    `yaml:"params,omitempty"`
	Stateful        bool              `yaml:"stateful,omitempty"` // responses API vs chat-completions
	Timeout         time.Duration     `yaml:"timeout,omitempty"`
	ContextWindow   int               `yaml:"context_window,omitempty"`
}

// Validate implements ConfigInterface.
func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("llm provider: type is required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm provider: model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("llm provider: temperature must be between 0 and 2")
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 128_000
	}
}

// ============================================================================
// TOOL REFERENCES AND PERMISSIONS
// ============================================================================

// ToolPermissions scopes what a tool may do on behalf of a given agent.
type ToolPermissions struct {
	AllowedPaths []string `yaml:"allowed_paths,omitempty"`
	ReadOnly     bool     `yaml:"read_only,omitempty"`
}

// ToolRef names a tool an agent may call, plus its per-agent permissions.
type ToolRef struct {
	Name        string          `yaml:"name"`
	Permissions ToolPermissions `yaml:"permissions,omitempty"`
}

// Validate implements ConfigInterface.
func (c *ToolRef) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("tool ref: name is required")
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *ToolRef) SetDefaults() {}

// MCPServerConfig declares an MCP server the agent's tool registry should
// mount as a tool factory (one tool per discovered name, see mcpadapter).
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio", "sse", "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// ObserverConfig declares one Observer Manager registration (spec.md
// §4.7): TriggerAgent is spawned with a prompt built from PromptTemplate
// whenever an event matching EventType/ToolName arrives on the swarm's
// LogStream, excluding events the observer itself produced.
type ObserverConfig struct {
	TriggerAgent      string `yaml:"trigger_agent"`
	EventType         string `yaml:"event_type,omitempty"`
	ToolName          string `yaml:"tool_name,omitempty"`
	PromptTemplate    string `yaml:"prompt_template"`
	MaxConcurrency    int    `yaml:"max_concurrency,omitempty"`
	WaitForCompletion bool   `yaml:"wait_for_completion,omitempty"`
}

// Validate implements ConfigInterface.
func (c *ObserverConfig) Validate() error {
	if c.TriggerAgent == "" {
		return fmt.Errorf("observer: trigger_agent is required")
	}
	if c.PromptTemplate == "" {
		return fmt.Errorf("observer %s: prompt_template is required", c.TriggerAgent)
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *ObserverConfig) SetDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 1
	}
}

// Validate implements ConfigInterface.
func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp server: name is required")
	}
	switch c.Transport {
	case "stdio":
		if c.Command == "" {
			return fmt.Errorf("mcp server %s: command is required for stdio transport", c.Name)
		}
	case "sse", "http":
		if c.URL == "" {
			return fmt.Errorf("mcp server %s: url is required for %s transport", c.Name, c.Transport)
		}
	default:
		return fmt.Errorf("mcp server %s: unsupported transport %q", c.Name, c.Transport)
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *MCPServerConfig) SetDefaults() {}

// ============================================================================
// HOOK CONFIGURATION
// ============================================================================

// HookEvent enumerates the lifecycle points a hook may bind to.
type HookEvent string

const (
	HookPreToolUse   HookEvent = "pre_tool_use"
	HookPostToolUse  HookEvent = "post_tool_use"
	HookUserPrompt   HookEvent = "user_prompt"
	HookAgentStop    HookEvent = "agent_stop"
	HookSessionStart HookEvent = "session_start"
	HookContextWarn  HookEvent = "context_warning"
	HookSwarmStart   HookEvent = "swarm_start"
	HookSwarmStop    HookEvent = "swarm_stop"
)

// HookConfig binds a shell command to an event, optionally restricted to
// tool names matching Matcher (pre/post tool events only).
type HookConfig struct {
	Event   HookEvent     `yaml:"event"`
	Matcher string        `yaml:"matcher,omitempty"`
	Command string        `yaml:"command,omitempty"` // shell hook
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Validate implements ConfigInterface.
func (c *HookConfig) Validate() error {
	switch c.Event {
	case HookPreToolUse, HookPostToolUse, HookUserPrompt, HookAgentStop,
		HookSessionStart, HookContextWarn, HookSwarmStart, HookSwarmStop:
	default:
		return fmt.Errorf("hook: unknown event %q", c.Event)
	}
	if c.Command == "" {
		return fmt.Errorf("hook %s: command is required", c.Event)
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *HookConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// ============================================================================
// AGENT DEFINITION
// ============================================================================

// AgentFlags carries boolean behavior switches for an agent.
type AgentFlags struct {
	BypassPermissions       bool `yaml:"bypass_permissions,omitempty"`
	DisableDefaultTools     bool `yaml:"disable_default_tools,omitempty"`
	CodingAgent             bool `yaml:"coding_agent,omitempty"`
	SharedAcrossDelegations bool `yaml:"shared_across_delegations,omitempty"`
}

// AgentConfig is the immutable-once-built Agent Definition from spec.md §3.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Model    string `yaml:"model"`
	Provider string `yaml:"provider"`

	SystemPrompt string `yaml:"system_prompt,omitempty"`
	WorkingDir   string `yaml:"working_dir"`

	Tools       []ToolRef         `yaml:"tools,omitempty"`
	DelegatesTo []string          `yaml:"delegates_to,omitempty"`
	MCPServers  []MCPServerConfig `yaml:"mcp_servers,omitempty"`
	PluginTools []string          `yaml:"plugin_tools,omitempty"`

	Hooks map[HookEvent][]HookConfig `yaml:"hooks,omitempty"`

	Timeout        time.Duration `yaml:"timeout,omitempty"`
	MaxConcurrency int           `yaml:"max_concurrency,omitempty"`

	Flags AgentFlags `yaml:"flags,omitempty"`
}

// Validate implements ConfigInterface.
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent: name is required")
	}
	if containsAt(c.Name) {
		return fmt.Errorf("agent %s: name must not contain '@'", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("agent %s: model is required", c.Name)
	}
	for _, d := range c.DelegatesTo {
		if d == c.Name {
			return fmt.Errorf("agent %s: cannot delegate to itself", c.Name)
		}
	}
	for _, t := range c.Tools {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("agent %s: %w", c.Name, err)
		}
	}
	for _, m := range c.MCPServers {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("agent %s: %w", c.Name, err)
		}
	}
	for event, hooks := range c.Hooks {
		for i := range hooks {
			hooks[i].Event = event
			if err := hooks[i].Validate(); err != nil {
				return fmt.Errorf("agent %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

func containsAt(s string) bool {
	for _, r := range s {
		if r == '@' {
			return true
		}
	}
	return false
}

// SetDefaults implements ConfigInterface.
func (c *AgentConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 300 * time.Second
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	for i := range c.Tools {
		c.Tools[i].SetDefaults()
	}
	for i := range c.MCPServers {
		c.MCPServers[i].SetDefaults()
	}
	for _, hooks := range c.Hooks {
		for i := range hooks {
			hooks[i].SetDefaults()
		}
	}
}

// ============================================================================
// SCRATCHPAD MODE
// ============================================================================

// ScratchpadMode controls how a Workflow's scratchpad is scoped across nodes.
type ScratchpadMode string

const (
	ScratchpadEnabled  ScratchpadMode = "enabled"
	ScratchpadPerNode  ScratchpadMode = "per_node"
	ScratchpadDisabled ScratchpadMode = "disabled"
)

// ============================================================================
// WORKFLOW / NODE CONFIGURATION
// ============================================================================

// TransformerConfig describes an input/output transformer: a shell command
// (receiving JSON on stdin, per spec.md §4.4/§6), or empty meaning "no
// transformer for this side".
type TransformerConfig struct {
	Command string        `yaml:"command,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults implements ConfigInterface.
func (c *TransformerConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// NodeAgentConfig describes one agent's participation in a workflow node's
// mini-swarm.
type NodeAgentConfig struct {
	Name         string    `yaml:"name"`
	DelegatesTo  []string  `yaml:"delegates_to,omitempty"`
	ResetContext bool      `yaml:"reset_context,omitempty"`
	ToolOverride []ToolRef `yaml:"tool_override,omitempty"`
}

// NodeConfig is one node of the Workflow DAG.
type NodeConfig struct {
	Name            string            `yaml:"name"`
	Agents          []NodeAgentConfig `yaml:"agents,omitempty"`
	DependsOn       []string          `yaml:"depends_on,omitempty"`
	Lead            string            `yaml:"lead,omitempty"`
	InputTransform  TransformerConfig `yaml:"input_transform,omitempty"`
	OutputTransform TransformerConfig `yaml:"output_transform,omitempty"`
}

// Validate implements ConfigInterface.
func (c *NodeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("workflow node: name is required")
	}
	if len(c.Agents) == 0 && c.InputTransform.Command == "" && c.OutputTransform.Command == "" {
		return fmt.Errorf("node %s: agent-less nodes must carry at least one transformer", c.Name)
	}
	for _, d := range c.DependsOn {
		if d == c.Name {
			return fmt.Errorf("node %s: cannot depend on itself", c.Name)
		}
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *NodeConfig) SetDefaults() {
	c.InputTransform.SetDefaults()
	c.OutputTransform.SetDefaults()
	if c.Lead == "" && len(c.Agents) > 0 {
		c.Lead = c.Agents[0].Name
	}
}

// WorkflowConfig describes the DAG of nodes executed by workflow.Executor.
type WorkflowConfig struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description,omitempty"`
	StartNode      string         `yaml:"start_node"`
	Nodes          []NodeConfig   `yaml:"nodes"`
	ScratchpadMode ScratchpadMode `yaml:"scratchpad_mode,omitempty"`
}

// Validate implements ConfigInterface.
func (c *WorkflowConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("workflow: name is required")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("workflow %s: must have at least one node", c.Name)
	}
	seen := make(map[string]bool, len(c.Nodes))
	for i := range c.Nodes {
		if err := c.Nodes[i].Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", c.Name, err)
		}
		if seen[c.Nodes[i].Name] {
			return fmt.Errorf("workflow %s: duplicate node %s", c.Name, c.Nodes[i].Name)
		}
		seen[c.Nodes[i].Name] = true
	}
	if c.StartNode == "" {
		return fmt.Errorf("workflow %s: start_node is required", c.Name)
	}
	if !seen[c.StartNode] {
		return fmt.Errorf("workflow %s: start_node %s not found among nodes", c.Name, c.StartNode)
	}
	for _, n := range c.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("workflow %s: node %s depends on unknown node %s", c.Name, n.Name, dep)
			}
		}
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *WorkflowConfig) SetDefaults() {
	if c.ScratchpadMode == "" {
		c.ScratchpadMode = ScratchpadEnabled
	}
	for i := range c.Nodes {
		c.Nodes[i].SetDefaults()
	}
}
