package snapshot

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/delegation"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/swarm"
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
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: "reply:" + last}, nil
}
func (echoProvider) Stateful() bool { return false }
func (echoProvider) Model() string  { return "echo" }

func baseAgents() map[string]config.AgentConfig {
	return map[string]config.AgentConfig{
		"A": {Name: "A", Model: "echo", Provider: "echo", DelegatesTo: []string{"B", "C"}},
		"B": {Name: "B", Model: "echo", Provider: "echo"},
		"C": {Name: "C", Model: "echo", Provider: "echo"},
	}
}

func newSwarm(t *testing.T, agents map[string]config.AgentConfig) *swarm.Swarm {
	t.Helper()
	cfg := &config.Config{
		Lead:      "A",
		Providers: map[string]config.LLMProviderConfig{"echo": {Type: "echo", Model: "echo"}},
		Agents:    agents,
	}
	cfg.SetDefaults()

	providers := llms.NewRegistry()
	require.NoError(t, providers.RegisterFactory("echo", func(config.LLMProviderConfig) (llms.Provider, error) {
		return echoProvider{}, nil
	}))

	s, err := swarm.New(swarm.Config{Name: "test", Cfg: cfg, Providers: providers, Tools: tools.NewRegistry()})
	require.NoError(t, err)
	return s
}

func TestCaptureRestore_RoundTripWithRemovedAgent(t *testing.T) {
	s1 := newSwarm(t, baseAgents())
	defer s1.Close()

	ctx := delegation.WithDepth(context.Background(), 0)

	a, err := s1.AgentChat("A")
	require.NoError(t, err)
	_, err = a.Ask(ctx, "hello A")
	require.NoError(t, err)

	_, err = s1.Graph().Delegate(ctx, "A", "B", "task for B")
	require.NoError(t, err)
	_, err = s1.Graph().Delegate(ctx, "A", "C", "task for C")
	require.NoError(t, err)

	snap, err := Capture(s1, nil)
	require.NoError(t, err)

	cMsgsBefore := s1.Graph().Instances()["C@A"].Messages()
	aMsgsBefore := a.Messages()

	data, err := snap.Serialize()
	require.NoError(t, err)

	reloaded, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, Version, reloaded.Version)

	removedAgents := map[string]config.AgentConfig{
		"A": {Name: "A", Model: "echo", Provider: "echo", DelegatesTo: []string{"C"}},
		"C": {Name: "C", Model: "echo", Provider: "echo"},
	}
	s2 := newSwarm(t, removedAgents)
	defer s2.Close()

	result, err := Restore(s2, reloaded, Options{})
	require.NoError(t, err)

	require.Len(t, result.SkippedDelegations, 1)
	assert.Equal(t, "B@A", result.SkippedDelegations[0])
	found := false
	for _, w := range result.Warnings {
		if w == "agent_not_found: B" {
			found = true
		}
	}
	assert.True(t, found, "expected an agent_not_found warning for B, got %v", result.Warnings)

	aAfter, err := s2.AgentChat("A")
	require.NoError(t, err)
	assert.Equal(t, aMsgsBefore, aAfter.Messages())

	cAfter, ok := s2.Graph().Get("C@A")
	require.True(t, ok)
	assert.Equal(t, cMsgsBefore, cAfter.Messages())
}

func TestRestore_RejectsWrongVersion(t *testing.T) {
	s := newSwarm(t, baseAgents())
	defer s.Close()

	_, err := Restore(s, &Snapshot{Version: "1.0.0", Type: TypeSwarm}, Options{})
	assert.Error(t, err)
}

func TestRestore_RejectsWrongType(t *testing.T) {
	s := newSwarm(t, baseAgents())
	defer s.Close()

	_, err := Restore(s, &Snapshot{Version: Version, Type: TypeWorkflow}, Options{})
	assert.Error(t, err)
}
