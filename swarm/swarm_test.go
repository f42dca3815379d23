package swarm

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	replies []string
	// toolCalls, if set, is returned (once) as the first response's tool
	// calls instead of the first queued reply.
	toolCalls []llms.ToolCall
	i         int
}

func (s *stubProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	if s.toolCalls != nil {
		calls := s.toolCalls
		s.toolCalls = nil
		return &llms.CompleteResponse{Role: llms.RoleAssistant, ToolCalls: calls}, nil
	}
	if s.i >= len(s.replies) {
		return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: "done"}, nil
	}
	content := s.replies[s.i]
	s.i++
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: content}, nil
}
func (s *stubProvider) Stateful() bool { return false }
func (s *stubProvider) Model() string  { return "stub" }

func testConfig() *config.Config {
	cfg := &config.Config{
		Providers: map[string]config.LLMProviderConfig{
			"stub": {Type: "stub", Model: "stub-model"},
		},
		Agents: map[string]config.AgentConfig{
			"lead": {
				Name:     "lead",
				Model:    "stub-model",
				Provider: "stub",
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestNew_ValidatesDelegationGraph(t *testing.T) {
	cfg := testConfig()
	agent := cfg.Agents["lead"]
	agent.DelegatesTo = []string{"lead"}
	cfg.Agents["lead"] = agent

	providers := llms.NewRegistry()
	_ = providers.RegisterFactory("stub", func(config.LLMProviderConfig) (llms.Provider, error) {
		return &stubProvider{}, nil
	})

	_, err := New(Config{Cfg: cfg, Providers: providers, Tools: tools.NewRegistry()})
	assert.Error(t, err)
}

func TestExecute_ReturnsLeadAgentReply(t *testing.T) {
	cfg := testConfig()
	providers := llms.NewRegistry()
	_ = providers.RegisterFactory("stub", func(config.LLMProviderConfig) (llms.Provider, error) {
		return &stubProvider{replies: []string{"hello from lead"}}, nil
	})

	s, err := New(Config{Cfg: cfg, Providers: providers, Tools: tools.NewRegistry()})
	require.NoError(t, err)

	reply, err := s.Execute(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from lead", reply)
}

type echoArgTool struct {
	ran bool
}

func (t *echoArgTool) Name() string               { return "echoer" }
func (t *echoArgTool) Description() string        { return "" }
func (t *echoArgTool) Parameters() map[string]any { return nil }
func (t *echoArgTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	t.ran = true
	return tools.ToolResult{Content: "echoed"}, nil
}

// TestBuildChat_PreToolUseHookCanHaltATool confirms a config-declared
// pre_tool_use shell hook actually runs around every tool call an agent's
// Chat makes (swarm.buildChat wires hook.Dispatcher into
// chat.Chat.AroundToolExecution).
func TestBuildChat_PreToolUseHookCanHaltATool(t *testing.T) {
	cfg := testConfig()
	agent := cfg.Agents["lead"]
	agent.Hooks = map[config.HookEvent][]config.HookConfig{
		config.HookPreToolUse: {{Command: "echo blocked >&2; exit 2"}},
	}
	cfg.Agents["lead"] = agent
	cfg.SetDefaults()

	providers := llms.NewRegistry()
	_ = providers.RegisterFactory("stub", func(config.LLMProviderConfig) (llms.Provider, error) {
		return &stubProvider{toolCalls: []llms.ToolCall{{ID: "1", Name: "echoer"}}}, nil
	})

	tool := &echoArgTool{}
	toolReg := tools.NewRegistry()
	_ = toolReg.Register("echoer", tools.SourceBuiltin, tools.Factory{
		Build: func(tools.Context) (tools.Tool, error) { return tool, nil },
	})

	s, err := New(Config{Cfg: cfg, Providers: providers, Tools: toolReg})
	require.NoError(t, err)

	c, err := s.buildChat("lead")
	require.NoError(t, err)

	msg, err := c.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.False(t, tool.ran, "tool body must not run once pre_tool_use halts")
	assert.True(t, msg.Content != "")
}

func TestClose_IsIdempotent(t *testing.T) {
	cfg := testConfig()
	providers := llms.NewRegistry()
	_ = providers.RegisterFactory("stub", func(config.LLMProviderConfig) (llms.Provider, error) {
		return &stubProvider{}, nil
	})
	s, err := New(Config{Cfg: cfg, Providers: providers, Tools: tools.NewRegistry()})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
