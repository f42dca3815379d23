package builder

import (
	"fmt"

	"github.com/kestrelai/swarmkit/config"
)

// SwarmBuilder provides a fluent API for assembling a complete
// config.Config programmatically, the same convenience layer the
// teacher's builder package provides over its own Config structs ("Config
// structs remain available for direct use").
//
// Example:
//
//	cfg, err := builder.NewSwarm("research-team").
//	    WithProvider("openai", config.LLMProviderConfig{Type: "openai", Model: "gpt-4o-mini"}).
//	    WithAgent(builder.NewAgent("lead").WithModel("gpt-4o").WithProvider("openai").MustBuild()).
//	    WithAgent(builder.NewAgent("researcher").WithModel("gpt-4o-mini").WithProvider("openai").MustBuild()).
//	    WithLead("lead").
//	    Build()
type SwarmBuilder struct {
	name        string
	description string
	global      config.GlobalSettings
	lead        string
	providers   map[string]config.LLMProviderConfig
	agents      map[string]config.AgentConfig
	workflows   map[string]config.WorkflowConfig
}

// NewSwarm starts building the named swarm configuration. Panics if name
// is empty.
func NewSwarm(name string) *SwarmBuilder {
	if name == "" {
		panic("swarm name cannot be empty")
	}
	return &SwarmBuilder{
		name:      name,
		providers: make(map[string]config.LLMProviderConfig),
		agents:    make(map[string]config.AgentConfig),
		workflows: make(map[string]config.WorkflowConfig),
	}
}

func (b *SwarmBuilder) WithDescription(d string) *SwarmBuilder { b.description = d; return b }
func (b *SwarmBuilder) WithGlobal(g config.GlobalSettings) *SwarmBuilder {
	b.global = g
	return b
}
func (b *SwarmBuilder) WithLead(name string) *SwarmBuilder { b.lead = name; return b }

func (b *SwarmBuilder) WithProvider(name string, p config.LLMProviderConfig) *SwarmBuilder {
	b.providers[name] = p
	return b
}

func (b *SwarmBuilder) WithAgent(a config.AgentConfig) *SwarmBuilder {
	b.agents[a.Name] = a
	return b
}

func (b *SwarmBuilder) WithWorkflow(w config.WorkflowConfig) *SwarmBuilder {
	b.workflows[w.Name] = w
	return b
}

// Build assembles, defaults, and validates the Config, running the same
// Validate pass this package exposes (structural + topology + filesystem
// checks) rather than just config.Config.Validate's structural subset.
func (b *SwarmBuilder) Build() (*config.Config, error) {
	cfg := &config.Config{
		Name:        b.name,
		Description: b.description,
		Global:      b.global,
		Lead:        b.lead,
		Providers:   b.providers,
		Agents:      b.agents,
		Workflows:   b.workflows,
	}
	cfg.SetDefaults()
	if err := Validate(cfg, DefaultValidateOptions()); err != nil {
		return nil, fmt.Errorf("builder: swarm %q: %w", b.name, err)
	}
	return cfg, nil
}

// MustBuild builds the Config or panics.
func (b *SwarmBuilder) MustBuild() *config.Config {
	cfg, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("builder: failed to build swarm %q: %v", b.name, err))
	}
	return cfg
}
