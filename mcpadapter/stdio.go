package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// stdioAdapter talks to an MCP server launched as a subprocess over stdio,
// ported from the teacher's Toolset.connectStdio/callStdio.
type stdioAdapter struct {
	name      string
	client    *client.Client
	filterSet map[string]bool
}

func connectStdio(ctx context.Context, cfg Config) (Adapter, error) {
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindMCPTransport, "mcpadapter", "Connect",
			fmt.Sprintf("failed to start MCP server %q", cfg.Name), err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, swarmerr.New(swarmerr.KindMCPTransport, "mcpadapter", "Connect",
			fmt.Sprintf("failed to start MCP client %q", cfg.Name), err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "swarmkit", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "Connect",
			fmt.Sprintf("MCP handshake failed for %q", cfg.Name), err)
	}

	return &stdioAdapter{name: cfg.Name, client: mcpClient, filterSet: filterSet(cfg.Filter)}, nil
}

func (a *stdioAdapter) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := a.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "ListTools",
			fmt.Sprintf("MCP server %q failed to list tools", a.name), err)
	}

	out := make([]ToolDescriptor, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		if a.filterSet != nil && !a.filterSet[t.Name] {
			continue
		}
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Schema:      convertSchema(t.InputSchema),
		})
	}
	return out, nil
}

func (a *stdioAdapter) CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	resp, err := a.client.CallTool(ctx, req)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "CallTool",
			fmt.Sprintf("MCP server %q call to %q failed", a.name, name), err)
	}
	return parseCallToolResult(resp), nil
}

func (a *stdioAdapter) Stop() error {
	return a.client.Close()
}

// parseCallToolResult mirrors the teacher's mcpToolWrapper.parseToolResponse.
func parseCallToolResult(resp *mcp.CallToolResult) map[string]any {
	result := make(map[string]any)
	if resp.IsError {
		for _, content := range resp.Content {
			if tc, ok := content.(mcp.TextContent); ok {
				result["error"] = tc.Text
				break
			}
		}
		if result["error"] == nil {
			result["error"] = "unknown error"
		}
		return result
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		result["result"] = texts[0]
	default:
		result["results"] = texts
	}
	return result
}

// convertSchema mirrors the teacher's convertSchema: round-trip through
// JSON to get a clean map[string]any representation of the tool's schema.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
