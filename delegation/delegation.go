// Package delegation implements the Delegation Graph (spec.md §4.3): a
// per-caller Agent Chat instance cache keyed by "<callee>@<caller>" (or
// "<callee>@*" when shared), the agent-as-tool adaptor that installs
// synthetic delegation tools, and depth-guarded cycle prevention.
//
// Grounded on the teacher's pkg/tool/agenttool (agentTool wraps agent.Agent,
// creating an isolated child session per call) generalized from
// "always-isolated" to "cached per callee@caller key, or per callee@* when
// shared_across_delegations" as spec.md §4.3 requires, and on
// team.SharedState's map+mutex shape for the cache itself.
package delegation

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms"
)

// Key formats the delegation instance key for a callee invoked by caller.
func Key(callee, caller string) string {
	return callee + "@" + caller
}

// SharedKey formats the delegation instance key for a callee with
// shared_across_delegations: true.
func SharedKey(callee string) string {
	return callee + "@*"
}

// DefaultMaxDepth is the recommended depth cap from spec.md §9 (Open
// Question iii): the source permits configuration-time transitive cycles
// but does not name a depth constant, so this module picks one.
const DefaultMaxDepth = 16

// ChatFactory builds a fresh Chat instance for a named agent, scoped to the
// caller that is about to delegate to it. Swarm supplies this so delegation
// doesn't need to know how to construct a Chat from an AgentConfig.
type ChatFactory func(calleeName string) (*chat.Chat, error)

// Graph owns the delegation instance cache for one Swarm.
type Graph struct {
	mu       sync.Mutex
	cache    map[string]*chat.Chat
	factory  ChatFactory
	shared   map[string]bool // agent name -> shared_across_delegations
	maxDepth int
}

// New constructs a Graph. shared names the agents configured with
// shared_across_delegations: true.
func New(factory ChatFactory, shared map[string]bool, maxDepth int) *Graph {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Graph{
		cache:    make(map[string]*chat.Chat),
		factory:  factory,
		shared:   shared,
		maxDepth: maxDepth,
	}
}

// ValidateConfig checks the delegates_to graph at configuration time: no
// self-edges (already rejected by config.AgentConfig.Validate) and every
// referenced agent exists. Transitive cycles are permitted per spec.md
// §4.3 - each delegation spawns an independent conversation - so this does
// not reject them; Graph.Delegate enforces the runtime depth cap instead.
func ValidateConfig(agents map[string][]string) error {
	for caller, callees := range agents {
		for _, callee := range callees {
			if callee == caller {
				return swarmerr.New(swarmerr.KindConfiguration, "Graph", "ValidateConfig",
					fmt.Sprintf("agent %q cannot delegate to itself", caller), nil)
			}
			if _, ok := agents[callee]; !ok {
				return swarmerr.New(swarmerr.KindConfiguration, "Graph", "ValidateConfig",
					fmt.Sprintf("agent %q delegates to unknown agent %q", caller, callee), nil)
			}
		}
	}
	return nil
}

// depthKey is a context key carrying the current delegation depth so
// nested Delegate calls can enforce the cap.
type depthKey struct{}

// WithDepth returns a context carrying the current delegation depth
// (0 for a top-level Swarm.execute call).
func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthOf(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// Delegate resolves (or constructs) the callee's cached Chat instance for
// caller, forwards prompt to it, and returns the callee's final assistant
// content as the tool result - the agent-as-tool adaptor body spec.md
// §4.3 describes.
func (g *Graph) Delegate(ctx context.Context, caller, callee, prompt string) (string, error) {
	depth := depthOf(ctx)
	if depth >= g.maxDepth {
		return "", swarmerr.New(swarmerr.KindConfiguration, "Graph", "Delegate",
			fmt.Sprintf("delegation depth exceeded max of %d", g.maxDepth), nil)
	}

	key := Key(callee, caller)
	if g.shared[callee] {
		key = SharedKey(callee)
	}

	inst, err := g.getOrCreate(key, callee)
	if err != nil {
		return "", err
	}

	childCtx := WithDepth(ctx, depth+1)
	reply, err := inst.Ask(childCtx, prompt)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (g *Graph) getOrCreate(key, callee string) (*chat.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if inst, ok := g.cache[key]; ok {
		return inst, nil
	}

	inst, err := g.factory(callee)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindAgentNotFound, "Graph", "getOrCreate",
			fmt.Sprintf("failed to construct chat instance for %q", callee), err)
	}
	g.cache[key] = inst
	return inst, nil
}

// Instances returns a snapshot of every cached delegation instance, keyed
// by its instance key, for snapshot capture.
func (g *Graph) Instances() map[string]*chat.Chat {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]*chat.Chat, len(g.cache))
	for k, v := range g.cache {
		out[k] = v
	}
	return out
}

// Get returns the cached instance for key, if any (used by tests and
// testable-property #2 assertions).
func (g *Graph) Get(key string) (*chat.Chat, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inst, ok := g.cache[key]
	return inst, ok
}

// Restore installs inst directly under key (used by snapshot restore to
// rehydrate delegation instances without going through the factory).
func (g *Graph) Restore(key string, inst *chat.Chat) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[key] = inst
}

// Clear empties the cache (used by Swarm cleanup).
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = make(map[string]*chat.Chat)
}

// ToolDefinitions builds the synthetic delegation tools to install on
// caller's Chat for each entry in delegatesTo, per spec.md §4.3 ("two
// synthetic tools are installed in A named after B and C").
func (g *Graph) ToolDefinitions(caller string, delegatesTo []string) []llms.ToolDefinition {
	defs := make([]llms.ToolDefinition, 0, len(delegatesTo))
	for _, callee := range delegatesTo {
		defs = append(defs, llms.ToolDefinition{
			Name:        callee,
			Description: fmt.Sprintf("Delegate a task to the %q agent.", callee),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{"type": "string"},
				},
				"required": []string{"prompt"},
			},
		})
	}
	return defs
}
