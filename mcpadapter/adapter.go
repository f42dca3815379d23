// Package mcpadapter implements the MCP tool adapter contract (spec.md §6):
// list_tools(), call_tool(name, arguments), stop(), over stdio subprocess,
// SSE, and HTTP transports. The core treats each connected Adapter as a
// tool factory producing one tools.Tool per discovered name.
//
// Grounded on the teacher's pkg/tool/mcptoolset/mcptoolset.go: the stdio
// transport ports Toolset.connectStdio's NewStdioMCPClient/Start/
// Initialize/ListTools sequence onto github.com/mark3labs/mcp-go/client
// unchanged; the HTTP/SSE transport ports Toolset.connectHTTP's hand-rolled
// JSON-RPC-over-HTTP exchange and readSSEResponse's event-stream parser,
// with retry/backoff supplied by llms/retry.Policy (this module's own
// generalization of the teacher's httpclient retry policy, already shared
// by every LLM provider adapter) rather than reintroducing a second copy
// of the teacher's httpclient.Client.
package mcpadapter

import (
	"context"
	"fmt"

	"github.com/kestrelai/swarmkit/tools"
)

// Transport names one of the three wire protocols spec.md §6 lists.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportSSE   Transport = "sse"
	TransportHTTP  Transport = "http"
)

// Config describes one MCP server connection. Command selects the stdio
// transport; URL selects SSE or HTTP according to Transport.
type Config struct {
	Name      string
	Transport Transport

	// Stdio
	Command string
	Args    []string
	Env     map[string]string

	// SSE / HTTP
	URL string

	// Filter restricts which discovered tool names are exposed. A nil
	// Filter exposes every tool the server advertises.
	Filter []string

	MaxRetries int
	Timeout    int // seconds; 0 uses the transport's own default
}

// ToolDescriptor is one tool an MCP server advertised via list_tools.
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Adapter is the core-facing MCP contract spec.md §6 names.
type Adapter interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error)
	Stop() error
}

// Connect dials cfg's server and returns a live Adapter, dispatching on
// cfg.Transport the same way Toolset.connect did: an explicit Command (or
// Transport == stdio) uses the stdio subprocess transport, anything else
// uses HTTP/SSE.
func Connect(ctx context.Context, cfg Config) (Adapter, error) {
	if cfg.Command != "" || cfg.Transport == TransportStdio {
		return connectStdio(ctx, cfg)
	}
	return connectHTTP(ctx, cfg)
}

func filterSet(names []string) map[string]bool {
	if names == nil {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Tools wraps every tool a (connected) Adapter advertises as a
// tools.Factory under tools.SourceMCP, per spec.md §6's "the core treats
// each as a tool factory producing one tool per discovered name".
func Tools(ctx context.Context, a Adapter) (map[string]tools.Factory, error) {
	descriptors, err := a.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]tools.Factory, len(descriptors))
	for _, d := range descriptors {
		desc := d
		out[desc.Name] = tools.Factory{
			Build: func(tools.Context) (tools.Tool, error) {
				return &mcpTool{adapter: a, descriptor: desc}, nil
			},
		}
	}
	return out, nil
}

// mcpTool is the local tools.Tool stand-in for one tool a connected
// Adapter exposes; Execute round-trips through the Adapter's CallTool.
type mcpTool struct {
	adapter    Adapter
	descriptor ToolDescriptor
}

func (t *mcpTool) Name() string              { return t.descriptor.Name }
func (t *mcpTool) Description() string       { return t.descriptor.Description }
func (t *mcpTool) Parameters() map[string]any { return t.descriptor.Schema }

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	result, err := t.adapter.CallTool(ctx, t.descriptor.Name, args)
	if err != nil {
		return tools.ToolResult{}, err
	}
	if errMsg, ok := result["error"].(string); ok && errMsg != "" {
		return tools.ToolResult{Error: errMsg}, nil
	}
	if text, ok := result["result"].(string); ok {
		return tools.ToolResult{Content: text}, nil
	}
	if texts, ok := result["results"].([]string); ok {
		return tools.ToolResult{Content: fmt.Sprint(texts)}, nil
	}
	return tools.ToolResult{Content: fmt.Sprint(result)}, nil
}
