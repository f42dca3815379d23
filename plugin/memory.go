package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/tools"
)

// scratchpadStorage adapts one agent's slice of a MemoryPlugin's private
// key/value map to the Storage interface.
type scratchpadStorage struct {
	mu   *sync.Mutex
	data map[string]any
}

func (s *scratchpadStorage) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *scratchpadStorage) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// MemoryPlugin is the reference Plugin spec.md §9 names by example: it
// contributes a "remember"/"recall" tool pair to every agent, and a short
// system-prompt fragment to any agent whose AgentFlags don't disable
// default tools (the tools themselves are not gated by that flag),
// backing both with a private per-agent key/value store that round-trips
// through SnapshotState/RestoreState.
type MemoryPlugin struct {
	mu     sync.Mutex
	byAgent map[string]map[string]any
}

// NewMemoryPlugin constructs an empty MemoryPlugin.
func NewMemoryPlugin() *MemoryPlugin {
	return &MemoryPlugin{byAgent: make(map[string]map[string]any)}
}

func (m *MemoryPlugin) Name() string { return "memory" }

func (m *MemoryPlugin) storageFor(agent string) *scratchpadStorage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byAgent[agent] == nil {
		m.byAgent[agent] = make(map[string]any)
	}
	return &scratchpadStorage{mu: &m.mu, data: m.byAgent[agent]}
}

func (m *MemoryPlugin) Tools(agentDef config.AgentConfig) map[string]tools.Factory {
	agent := agentDef.Name
	return map[string]tools.Factory{
		"remember": {
			Requirements: nil,
			Build: func(ctx tools.Context) (tools.Tool, error) {
				return &rememberTool{storage: m.storageFor(agent)}, nil
			},
		},
		"recall": {
			Requirements: nil,
			Build: func(ctx tools.Context) (tools.Tool, error) {
				return &recallTool{storage: m.storageFor(agent)}, nil
			},
		},
	}
}

func (m *MemoryPlugin) StorageEnabled(agentDef config.AgentConfig) bool {
	return !agentDef.Flags.DisableDefaultTools
}

func (m *MemoryPlugin) SystemPromptContribution(agentDef config.AgentConfig, storage Storage) string {
	if storage == nil {
		return ""
	}
	return "You have access to a persistent memory store via the remember and recall tools."
}

func (m *MemoryPlugin) SnapshotState(agent string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.byAgent[agent]
	if !ok || len(data) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryPlugin) RestoreState(agent string, state any) error {
	data, ok := state.(map[string]any)
	if !ok {
		return fmt.Errorf("memory: unexpected snapshot state shape %T", state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byAgent[agent] = data
	return nil
}

type rememberTool struct {
	storage *scratchpadStorage
}

func (t *rememberTool) Name() string        { return "remember" }
func (t *rememberTool) Description() string { return "Store a fact under a key for later recall." }
func (t *rememberTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":   map[string]any{"type": "string"},
			"value": map[string]any{"type": "string"},
		},
		"required": []string{"key", "value"},
	}
}
func (t *rememberTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if key == "" {
		return tools.ToolResult{Error: "remember: key is required"}, nil
	}
	t.storage.Set(key, value)
	return tools.ToolResult{Content: fmt.Sprintf("remembered %q", key)}, nil
}

type recallTool struct {
	storage *scratchpadStorage
}

func (t *recallTool) Name() string        { return "recall" }
func (t *recallTool) Description() string { return "Retrieve a previously remembered value by key." }
func (t *recallTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string"},
		},
		"required": []string{"key"},
	}
}
func (t *recallTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	key, _ := args["key"].(string)
	value, ok := t.storage.Get(key)
	if !ok {
		return tools.ToolResult{Content: fmt.Sprintf("no memory found for %q", key)}, nil
	}
	return tools.ToolResult{Content: fmt.Sprintf("%v", value)}, nil
}
