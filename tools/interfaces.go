// Package tools implements the Tool Registry & Factory (spec.md §4.2): a
// name→factory map with declared requirement sets, fail-fast instantiation,
// and two reference tool bodies exercising the spec's two hard-coded
// safety invariants (blocked bash patterns, read-before-edit).
//
// Grounded on the teacher's tools/interfaces.go (Tool/ToolResult shape) and
// tools/registry.go (registry + requirement wiring), generalized onto the
// new registry.BaseRegistry[T] and the spec's requirement-set vocabulary.
package tools

import (
	"context"
	"time"

	"github.com/kestrelai/swarmkit/scratchpad"
)

// ToolResult is the outcome of a tool Execute call. A halt result signals
// the chat engine to terminate the current turn with Content as the reply
// (spec.md §3 "Tool Call / Result").
type ToolResult struct {
	Content       string
	Halt          bool
	Error         string
	ExecutionTime time.Duration
}

// Tool is the common interface for all local tool bodies.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// Requirement names one piece of execution context a tool factory needs
// injected at instantiation time.
type Requirement string

const (
	RequireAgentName         Requirement = "agent_name"
	RequireDirectory         Requirement = "directory"
	RequireScratchpadStorage Requirement = "scratchpad_storage"
	RequireChatInstance      Requirement = "chat_instance"
	RequireReadTracker       Requirement = "read_tracker"
)

// Context bundles the concrete values a Factory may consume; Instantiate
// checks the ones named in the Factory's Requirements.
type Context struct {
	AgentName    string
	Directory    string
	Scratchpad   *scratchpad.Scratchpad
	ChatInstance any
	ReadTracker  *scratchpad.ReadTracker
}
