package tools

import (
	"fmt"

	"github.com/kestrelai/swarmkit/registry"
)

// Factory builds a Tool given an execution Context. Requirements declares
// which Context fields the factory actually needs; Instantiate fails fast
// if any declared requirement is unset.
type Factory struct {
	Requirements []Requirement
	Build        func(Context) (Tool, error)
}

// Source identifies where a registered factory came from, for
// SourceOf / collision diagnostics.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourcePlugin  Source = "plugin"
	SourceMCP     Source = "mcp"
	SourceUser    Source = "user"
)

type registeredFactory struct {
	factory Factory
	source  Source
}

// Registry maps tool names to Factory entries. Tool names are
// case-sensitive; registering the same name twice (even from different
// sources) is rejected, per spec.md §4.2.
type Registry struct {
	entries *registry.BaseRegistry[registeredFactory]
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: registry.NewBaseRegistry[registeredFactory]()}
}

// Register adds factory under name, attributed to source. Returns an error
// on empty name or name collision.
func (r *Registry) Register(name string, source Source, factory Factory) error {
	return r.entries.Register(name, registeredFactory{factory: factory, source: source})
}

// Instantiate builds the named tool, validating every declared requirement
// is present in ctx before calling the factory's Build function.
func (r *Registry) Instantiate(name string, ctx Context) (Tool, error) {
	entry, ok := r.entries.Get(name)
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %q", name)
	}
	if err := checkRequirements(entry.factory.Requirements, ctx); err != nil {
		return nil, fmt.Errorf("tools: %q: %w", name, err)
	}
	return entry.factory.Build(ctx)
}

func checkRequirements(required []Requirement, ctx Context) error {
	for _, req := range required {
		switch req {
		case RequireAgentName:
			if ctx.AgentName == "" {
				return fmt.Errorf("missing required agent_name")
			}
		case RequireDirectory:
			if ctx.Directory == "" {
				return fmt.Errorf("missing required directory")
			}
		case RequireScratchpadStorage:
			if ctx.Scratchpad == nil {
				return fmt.Errorf("missing required scratchpad_storage")
			}
		case RequireChatInstance:
			if ctx.ChatInstance == nil {
				return fmt.Errorf("missing required chat_instance")
			}
		case RequireReadTracker:
			if ctx.ReadTracker == nil {
				return fmt.Errorf("missing required read_tracker")
			}
		}
	}
	return nil
}

// Names lists every registered tool name.
func (r *Registry) Names() []string {
	return r.entries.Names()
}

// SourceOf returns which source registered name.
func (r *Registry) SourceOf(name string) (Source, bool) {
	entry, ok := r.entries.Get(name)
	if !ok {
		return "", false
	}
	return entry.source, true
}

// Remove deregisters name. Nothing in this module calls it; plugin and MCP
// tools stay registered until the Registry is discarded.
func (r *Registry) Remove(name string) error {
	return r.entries.Remove(name)
}

// Clone returns a new Registry pre-populated with every entry in r. Used by
// delegation to give each delegating agent its own view onto the shared
// builtin/plugin/MCP tool set before installing synthetic delegation tools
// that are specific to that one caller.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for _, name := range r.entries.Names() {
		entry, ok := r.entries.Get(name)
		if !ok {
			continue
		}
		_ = clone.entries.Register(name, entry)
	}
	return clone
}
