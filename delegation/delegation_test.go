package delegation

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ reply string }

func (s *stubProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: s.reply}, nil
}
func (s *stubProvider) Stateful() bool { return false }
func (s *stubProvider) Model() string  { return "stub" }

func newTestFactory(name string) ChatFactory {
	return func(callee string) (*chat.Chat, error) {
		return chat.New(chat.Config{
			AgentName: callee,
			Provider:  &stubProvider{reply: "reply from " + callee},
			Tools:     tools.NewRegistry(),
		}), nil
	}
}

func TestDelegate_CachesInstancePerCalleeCaller(t *testing.T) {
	g := New(newTestFactory("x"), nil, 0)

	reply, err := g.Delegate(context.Background(), "lead", "worker", "do it")
	require.NoError(t, err)
	assert.Equal(t, "reply from worker", reply)

	inst1, ok := g.Get(Key("worker", "lead"))
	require.True(t, ok)

	_, err = g.Delegate(context.Background(), "lead", "worker", "do it again")
	require.NoError(t, err)
	inst2, _ := g.Get(Key("worker", "lead"))
	assert.Same(t, inst1, inst2)
}

func TestDelegate_SharedAcrossCallers(t *testing.T) {
	g := New(newTestFactory("x"), map[string]bool{"worker": true}, 0)

	_, err := g.Delegate(context.Background(), "lead1", "worker", "a")
	require.NoError(t, err)
	_, err = g.Delegate(context.Background(), "lead2", "worker", "b")
	require.NoError(t, err)

	inst, ok := g.Get(SharedKey("worker"))
	require.True(t, ok)
	assert.NotNil(t, inst)

	_, notShared := g.Get(Key("worker", "lead1"))
	assert.False(t, notShared)
}

func TestDelegate_DepthCapEnforced(t *testing.T) {
	g := New(newTestFactory("x"), nil, 2)

	ctx := WithDepth(context.Background(), 2)
	_, err := g.Delegate(ctx, "lead", "worker", "go")
	require.Error(t, err)
}

func TestValidateConfig_RejectsSelfDelegationAndUnknownTarget(t *testing.T) {
	err := ValidateConfig(map[string][]string{"a": {"a"}})
	assert.Error(t, err)

	err = ValidateConfig(map[string][]string{"a": {"ghost"}})
	assert.Error(t, err)

	err = ValidateConfig(map[string][]string{"a": {"b"}, "b": {}})
	assert.NoError(t, err)
}
