// Package config provides configuration types and utilities for the agent
// orchestration framework. This file contains the main unified configuration
// entry point.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config represents the complete declarative configuration for a swarm or
// set of workflows: providers, agents and workflow DAGs, plus global
// settings. Loading YAML into this struct is an external collaborator's
// responsibility; LoadConfig/LoadConfigFromString below are a reference
// loader wired to the env-interpolation and validation already in this
// package.
type Config struct {
	Version     string            `yaml:"version,omitempty"`
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	Global GlobalSettings `yaml:"global,omitempty"`

	// Lead names the agent a Swarm dispatches a prompt to first (spec.md
	// §3's "designated lead"). Defaults to the lexicographically-first
	// agent name when unset.
	Lead string `yaml:"lead,omitempty"`

	Providers map[string]LLMProviderConfig `yaml:"providers,omitempty"`
	Agents    map[string]AgentConfig       `yaml:"agents,omitempty"`
	Workflows map[string]WorkflowConfig    `yaml:"workflows,omitempty"`

	// Observers declares the swarm's Observer Manager registrations
	// (spec.md §4.7), keyed by observer name.
	Observers map[string]ObserverConfig `yaml:"observers,omitempty"`
}

// Validate implements ConfigInterface.
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global settings validation failed: %w", err)
	}

	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider '%s' validation failed: %w", name, err)
		}
	}

	for name, a := range c.Agents {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("agent '%s' validation failed: %w", name, err)
		}
		if a.Provider != "" {
			if _, ok := c.Providers[a.Provider]; !ok {
				return fmt.Errorf("agent '%s' references unknown provider '%s'", name, a.Provider)
			}
		}
		for _, callee := range a.DelegatesTo {
			if _, ok := c.Agents[callee]; !ok {
				return fmt.Errorf("agent '%s' delegates to unknown agent '%s'", name, callee)
			}
		}
	}

	for name, w := range c.Workflows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("workflow '%s' validation failed: %w", name, err)
		}
		for _, n := range w.Nodes {
			for _, na := range n.Agents {
				if _, ok := c.Agents[na.Name]; !ok {
					return fmt.Errorf("workflow '%s' node '%s' references unknown agent '%s'", name, n.Name, na.Name)
				}
			}
		}
	}

	if c.Lead != "" {
		if _, ok := c.Agents[c.Lead]; !ok {
			return fmt.Errorf("lead references unknown agent '%s'", c.Lead)
		}
	}

	for name, o := range c.Observers {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("observer '%s' validation failed: %w", name, err)
		}
		if _, ok := c.Agents[o.TriggerAgent]; !ok {
			return fmt.Errorf("observer '%s' triggers unknown agent '%s'", name, o.TriggerAgent)
		}
	}

	return nil
}

// SetDefaults implements ConfigInterface.
func (c *Config) SetDefaults() {
	c.Global.SetDefaults()

	if c.Providers == nil {
		c.Providers = make(map[string]LLMProviderConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	if c.Workflows == nil {
		c.Workflows = make(map[string]WorkflowConfig)
	}
	if c.Observers == nil {
		c.Observers = make(map[string]ObserverConfig)
	}

	for name, p := range c.Providers {
		p.SetDefaults()
		c.Providers[name] = p
	}
	for name, a := range c.Agents {
		a.SetDefaults()
		c.Agents[name] = a
	}
	for name, w := range c.Workflows {
		w.SetDefaults()
		c.Workflows[name] = w
	}
	for name, o := range c.Observers {
		o.SetDefaults()
		c.Observers[name] = o
	}

	if c.Lead == "" && len(c.Agents) > 0 {
		names := c.ListAgents()
		sort.Strings(names)
		c.Lead = names[0]
	}
}

// ============================================================================
// GLOBAL SETTINGS
// ============================================================================

// GlobalSettings carries ambient, cross-cutting settings that are not part
// of any single agent or workflow definition.
type GlobalSettings struct {
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Performance PerformanceConfig `yaml:"performance,omitempty"`
}

// Validate implements ConfigInterface.
func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	if err := c.Performance.Validate(); err != nil {
		return fmt.Errorf("performance config validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *GlobalSettings) SetDefaults() {
	c.Logging.SetDefaults()
	c.Performance.SetDefaults()
}

// LoggingConfig configures the package-level slog logger (see logstream).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Validate implements ConfigInterface.
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Output] {
		return fmt.Errorf("invalid output destination: %s", c.Output)
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

// PerformanceConfig sets process-wide defaults for concurrency and timeouts,
// overridable per agent.
type PerformanceConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Validate implements ConfigInterface.
func (c *PerformanceConfig) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// SetDefaults implements ConfigInterface.
func (c *PerformanceConfig) SetDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Minute
	}
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// LoadConfig loads the complete configuration from a YAML file, expanding
// ${VAR}-style environment references before decoding.
func LoadConfig(filePath string) (*Config, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadConfigFromString(string(raw))
}

// LoadConfigFromString loads configuration from a YAML string.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	expanded := expandEnvVars(yamlContent)

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ============================================================================
// HELPER METHODS
// ============================================================================

// GetAgent returns an agent configuration by name.
func (c *Config) GetAgent(name string) (*AgentConfig, bool) {
	agent, exists := c.Agents[name]
	if !exists {
		return nil, false
	}
	return &agent, true
}

// GetWorkflow returns a workflow configuration by name.
func (c *Config) GetWorkflow(name string) (*WorkflowConfig, bool) {
	wf, exists := c.Workflows[name]
	if !exists {
		return nil, false
	}
	return &wf, true
}

// GetProvider returns an LLM provider configuration by name.
func (c *Config) GetProvider(name string) (*LLMProviderConfig, bool) {
	p, exists := c.Providers[name]
	if !exists {
		return nil, false
	}
	return &p, true
}

// ListAgents returns the names of all configured agents.
func (c *Config) ListAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}

// ListWorkflows returns the names of all configured workflows.
func (c *Config) ListWorkflows() []string {
	names := make([]string, 0, len(c.Workflows))
	for name := range c.Workflows {
		names = append(names, name)
	}
	return names
}
