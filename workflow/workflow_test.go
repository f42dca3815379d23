package workflow

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct{}

func (echoProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	var last string
	for _, m := range req.Messages {
		if m.Role == llms.RoleUser {
			last = m.Content
		}
	}
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: last}, nil
}
func (echoProvider) Stateful() bool { return false }
func (echoProvider) Model() string  { return "echo" }

func threeNodeConfig() *config.Config {
	cfg := &config.Config{
		Providers: map[string]config.LLMProviderConfig{"echo": {Type: "echo", Model: "echo"}},
		Agents: map[string]config.AgentConfig{
			"planner":  {Name: "planner", Model: "echo", Provider: "echo"},
			"builder":  {Name: "builder", Model: "echo", Provider: "echo"},
			"verifier": {Name: "verifier", Model: "echo", Provider: "echo"},
		},
		Workflows: map[string]config.WorkflowConfig{
			"pipeline": {
				Name:      "pipeline",
				StartNode: "plan",
				Nodes: []config.NodeConfig{
					{Name: "plan", Agents: []config.NodeAgentConfig{{Name: "planner"}}},
					{Name: "build", Agents: []config.NodeAgentConfig{{Name: "builder"}}, DependsOn: []string{"plan"}},
					{Name: "verify", Agents: []config.NodeAgentConfig{{Name: "verifier"}}, DependsOn: []string{"build"}},
				},
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestTopoOrder_ThreeNodeChain(t *testing.T) {
	cfg := threeNodeConfig()
	wf, _ := cfg.GetWorkflow("pipeline")
	order, err := TopoOrder(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"plan", "build", "verify"}, order)
}

func TestTopoOrder_DetectsCycle(t *testing.T) {
	wf := &config.WorkflowConfig{
		Name:      "cyclic",
		StartNode: "a",
		Nodes: []config.NodeConfig{
			{Name: "a", DependsOn: []string{"b"}, Agents: []config.NodeAgentConfig{{Name: "x"}}},
			{Name: "b", DependsOn: []string{"a"}, Agents: []config.NodeAgentConfig{{Name: "x"}}},
		},
	}
	_, err := TopoOrder(wf)
	assert.Error(t, err)
}

func TestExecute_ThreeNodeWorkflowEchoesPrompt(t *testing.T) {
	cfg := threeNodeConfig()
	providers := llms.NewRegistry()
	_ = providers.RegisterFactory("echo", func(config.LLMProviderConfig) (llms.Provider, error) {
		return echoProvider{}, nil
	})

	exec, err := NewExecutor(cfg, "pipeline", providers, tools.NewRegistry(), nil)
	require.NoError(t, err)

	result, err := exec.Execute(context.Background(), "P")
	require.NoError(t, err)
	assert.Equal(t, "P", result.Content)
}

func TestExecute_InputTransformerHaltsWorkflow(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.LLMProviderConfig{"echo": {Type: "echo", Model: "echo"}},
		Agents: map[string]config.AgentConfig{
			"guard_agent": {Name: "guard_agent", Model: "echo", Provider: "echo"},
		},
		Workflows: map[string]config.WorkflowConfig{
			"guarded": {
				Name:      "guarded",
				StartNode: "guard",
				Nodes: []config.NodeConfig{
					{
						Name:   "guard",
						Agents: []config.NodeAgentConfig{{Name: "guard_agent"}},
						InputTransform: config.TransformerConfig{
							Command: `printf '{"halt_workflow": true, "content": "TOO LONG"}'`,
						},
					},
				},
			},
		},
	}
	cfg.SetDefaults()

	providers := llms.NewRegistry()
	_ = providers.RegisterFactory("echo", func(config.LLMProviderConfig) (llms.Provider, error) {
		return echoProvider{}, nil
	})

	exec, err := NewExecutor(cfg, "guarded", providers, tools.NewRegistry(), nil)
	require.NoError(t, err)

	result, err := exec.Execute(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "TOO LONG", result.Content)
	assert.Equal(t, "halted:guard", result.Agent)
}
