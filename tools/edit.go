package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kestrelai/swarmkit/scratchpad"
)

// EditTool replaces oldText with newText in a file, refusing the operation
// unless the calling agent has previously read the resolved path with a
// digest matching the file's current contents (spec.md §3/§4.1/§8).
type EditTool struct {
	agentName string
	tracker   *scratchpad.ReadTracker
}

// EditFactory is the Registry entry for "edit_file".
func EditFactory() Factory {
	return Factory{
		Requirements: []Requirement{RequireAgentName, RequireReadTracker},
		Build: func(ctx Context) (Tool, error) {
			return &EditTool{agentName: ctx.AgentName, tracker: ctx.ReadTracker}, nil
		},
	}
}

func (t *EditTool) Name() string        { return "edit_file" }
func (t *EditTool) Description() string { return "Replace text in a previously-read file." }
func (t *EditTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string"},
			"old_text": map[string]any{"type": "string"},
			"new_text": map[string]any{"type": "string"},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	oldText, _ := args["old_text"].(string)
	newText, _ := args["new_text"].(string)
	if path == "" {
		return ToolResult{Error: "path parameter is required"}, nil
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return ToolResult{Error: fmt.Sprintf("cannot resolve path: %v", err)}, nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return ToolResult{Error: fmt.Sprintf("cannot read file: %v", err)}, nil
	}
	currentDigest := Digest(raw)

	if !t.tracker.HasRead(t.agentName, resolved, currentDigest) {
		return ToolResult{
			Error: fmt.Sprintf("must Read %s before editing it (no matching prior read found)", resolved),
		}, nil
	}

	content := string(raw)
	replaced := replaceOnce(content, oldText, newText)
	if replaced == content {
		return ToolResult{Error: "old_text not found in file"}, nil
	}

	if err := os.WriteFile(resolved, []byte(replaced), 0o644); err != nil {
		return ToolResult{Error: fmt.Sprintf("cannot write file: %v", err)}, nil
	}

	t.tracker.RecordRead(t.agentName, resolved, Digest([]byte(replaced)))
	return ToolResult{Content: fmt.Sprintf("edited %s", resolved)}, nil
}

// Digest computes the content digest the read-tracker stores and compares.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func replaceOnce(s, old, newStr string) string {
	idx := indexOf(s, old)
	if idx < 0 {
		return s
	}
	return s[:idx] + newStr + s[idx+len(old):]
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

// ReadTool records a read in the agent's tracker, enabling subsequent
// EditTool calls on the same path.
type ReadTool struct {
	agentName string
	tracker   *scratchpad.ReadTracker
}

// ReadFactory is the Registry entry for "read_file".
func ReadFactory() Factory {
	return Factory{
		Requirements: []Requirement{RequireAgentName, RequireReadTracker},
		Build: func(ctx Context) (Tool, error) {
			return &ReadTool{agentName: ctx.AgentName, tracker: ctx.ReadTracker}, nil
		},
	}
}

func (t *ReadTool) Name() string        { return "read_file" }
func (t *ReadTool) Description() string { return "Read a file's contents." }
func (t *ReadTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return ToolResult{Error: "path parameter is required"}, nil
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return ToolResult{Error: fmt.Sprintf("cannot resolve path: %v", err)}, nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return ToolResult{Error: fmt.Sprintf("cannot read file: %v", err)}, nil
	}

	t.tracker.RecordRead(t.agentName, resolved, Digest(raw))
	return ToolResult{Content: string(raw)}, nil
}
