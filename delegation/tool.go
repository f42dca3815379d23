package delegation

import (
	"context"
	"fmt"

	"github.com/kestrelai/swarmkit/tools"
)

// delegationTool adapts one Graph.Delegate edge into a tools.Tool so it can
// be installed on the caller's tools.Registry and invoked through the
// ordinary tool-call path (spec.md §4.3's "installed as synthetic tools").
type delegationTool struct {
	caller string
	callee string
	graph  *Graph
}

func (t *delegationTool) Name() string        { return t.callee }
func (t *delegationTool) Description() string { return fmt.Sprintf("Delegate a task to the %q agent.", t.callee) }
func (t *delegationTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{"type": "string"},
		},
		"required": []string{"prompt"},
	}
}

func (t *delegationTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	prompt, _ := args["prompt"].(string)
	content, err := t.graph.Delegate(ctx, t.caller, t.callee, prompt)
	if err != nil {
		return tools.ToolResult{Error: err.Error()}, nil
	}
	return tools.ToolResult{Content: content}, nil
}

// Factory returns a tools.Factory that builds the synthetic delegation tool
// from caller to callee, for registration into caller's tools.Registry.
func (g *Graph) Factory(caller, callee string) tools.Factory {
	return tools.Factory{
		Build: func(tools.Context) (tools.Tool, error) {
			return &delegationTool{caller: caller, callee: callee, graph: g}, nil
		},
	}
}

// Install registers a delegation tool named callee on reg for every entry
// in delegatesTo, wiring caller's synthetic tool surface per spec.md §4.3.
func (g *Graph) Install(reg *tools.Registry, caller string, delegatesTo []string) error {
	for _, callee := range delegatesTo {
		if err := reg.Register(callee, tools.SourceBuiltin, g.Factory(caller, callee)); err != nil {
			return err
		}
	}
	return nil
}
