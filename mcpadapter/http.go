package mcpadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms/retry"
)

// httpAdapter talks to an MCP server over HTTP or SSE, ported from the
// teacher's Toolset.connectHTTP/makeHTTPRequest/readSSEResponse. Retry/
// backoff is supplied by llms/retry.Policy instead of a second copy of the
// teacher's httpclient.Client, since this module already generalized that
// policy for every LLM provider adapter.
type httpAdapter struct {
	name      string
	url       string
	transport Transport
	client    *http.Client
	policy    retry.Policy
	timeout   time.Duration

	sessionMu sync.RWMutex
	sessionID string

	filterSet map[string]bool
}

func connectHTTP(ctx context.Context, cfg Config) (Adapter, error) {
	if cfg.URL == "" {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "mcpadapter", "Connect",
			fmt.Sprintf("MCP server %q has no URL for transport %q", cfg.Name, cfg.Transport), nil)
	}

	policy := retry.Default()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	timeout := 5 * time.Minute
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	a := &httpAdapter{
		name:      cfg.Name,
		url:       cfg.URL,
		transport: cfg.Transport,
		client:    &http.Client{Timeout: 30 * time.Second},
		policy:    policy,
		timeout:   timeout,
		filterSet: filterSet(cfg.Filter),
	}

	if _, err := a.request(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "swarmkit", "version": "1.0.0"},
	}); err != nil {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "Connect",
			fmt.Sprintf("MCP handshake failed for %q", cfg.Name), err)
	}

	return a, nil
}

func (a *httpAdapter) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := a.request(ctx, "tools/list", nil)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "ListTools",
			fmt.Sprintf("MCP server %q failed to list tools", a.name), err)
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "ListTools", "unexpected tools/list result shape", nil)
	}
	toolsList, _ := resultMap["tools"].([]any)

	out := make([]ToolDescriptor, 0, len(toolsList))
	for _, raw := range toolsList {
		toolMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		if a.filterSet != nil && !a.filterSet[name] {
			continue
		}
		desc, _ := toolMap["description"].(string)
		schema, _ := toolMap["inputSchema"].(map[string]any)
		out = append(out, ToolDescriptor{Name: name, Description: desc, Schema: schema})
	}
	return out, nil
}

func (a *httpAdapter) CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	resp, err := a.request(ctx, "tools/call", map[string]any{"name": name, "arguments": arguments})
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindMCP, "mcpadapter", "CallTool",
			fmt.Sprintf("MCP server %q call to %q failed", a.name, name), err)
	}
	if resp.Error != nil {
		return map[string]any{"error": resp.Error.Message}, nil
	}

	result := make(map[string]any)
	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		result["result"] = resp.Result
		return result, nil
	}

	if isError, _ := resultMap["isError"].(bool); isError {
		result["error"] = firstText(resultMap, "unknown error")
		return result, nil
	}

	content, _ := resultMap["content"].([]any)
	var texts []string
	for _, c := range content {
		cm, ok := c.(map[string]any)
		if !ok || cm["type"] != "text" {
			continue
		}
		if text, ok := cm["text"].(string); ok {
			texts = append(texts, text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		result["result"] = texts[0]
	default:
		result["results"] = texts
	}
	return result, nil
}

func (a *httpAdapter) Stop() error { return nil }

func firstText(resultMap map[string]any, fallback string) string {
	content, _ := resultMap["content"].([]any)
	for _, c := range content {
		if cm, ok := c.(map[string]any); ok {
			if text, ok := cm["text"].(string); ok {
				return text
			}
		}
	}
	return fallback
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// request sends one JSON-RPC call over HTTP, retrying per a.policy.
func (a *httpAdapter) request(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	var resp *jsonRPCResponse
	err := retry.Do(ctx, a.policy, func() error {
		r, err := a.doOnce(ctx, method, params)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func (a *httpAdapter) doOnce(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal MCP request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to build MCP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	a.sessionMu.RLock()
	sessionID := a.sessionID
	a.sessionMu.RUnlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Left unwrapped (not a retry.RetryableError) so Policy.ShouldRetry
		// falls through to its net.Error/context.DeadlineExceeded checks,
		// which is how transport-level failures (vs. HTTP status codes) are
		// classified as retryable.
		return nil, fmt.Errorf("MCP request failed: %w", err)
	}
	defer resp.Body.Close()

	if newSessionID := resp.Header.Get("mcp-session-id"); newSessionID != "" {
		a.sessionMu.Lock()
		a.sessionID = newSessionID
		a.sessionMu.Unlock()
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &retry.RetryableError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("MCP server returned %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return a.readSSE(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read MCP response: %w", err)
	}
	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse MCP response: %w", err)
	}
	return &rpcResp, nil
}

// readSSE reads the first complete JSON-RPC event from an SSE stream,
// ported from the teacher's Toolset.readSSEResponse.
func (a *httpAdapter) readSSE(resp *http.Response) (*jsonRPCResponse, error) {
	type result struct {
		resp *jsonRPCResponse
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer resp.Body.Close()
		reader := bufio.NewReader(resp.Body)
		var data strings.Builder

		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				break
			}
			trimmed := strings.TrimSpace(string(line))
			if trimmed == "" {
				if data.Len() > 0 {
					var rpcResp jsonRPCResponse
					if err := json.Unmarshal([]byte(data.String()), &rpcResp); err == nil {
						ch <- result{resp: &rpcResp}
						return
					}
					data.Reset()
				}
				continue
			}
			if strings.HasPrefix(trimmed, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
			}
		}

		if data.Len() > 0 {
			var rpcResp jsonRPCResponse
			if err := json.Unmarshal([]byte(data.String()), &rpcResp); err == nil {
				ch <- result{resp: &rpcResp}
				return
			}
		}
		ch <- result{err: fmt.Errorf("SSE stream ended without a complete MCP response")}
	}()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-time.After(a.timeout):
		return nil, fmt.Errorf("timeout reading MCP SSE response after %v", a.timeout)
	}
}
