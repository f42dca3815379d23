package hook

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFire_CallableHalts(t *testing.T) {
	d := New("/tmp", "test-swarm")
	require.NoError(t, d.RegisterCallable(config.HookPreToolUse, "bash", func(ctx context.Context, p Payload) (Result, error) {
		return Result{Outcome: Halt, Message: "blocked"}, nil
	}))

	result := d.Fire(context.Background(), config.HookPreToolUse, "bash", Payload{Agent: "lead"})
	assert.Equal(t, Halt, result.Outcome)
	assert.Equal(t, "blocked", result.Message)
}

func TestFire_MatcherFiltersbyToolName(t *testing.T) {
	d := New("/tmp", "test-swarm")
	fired := false
	require.NoError(t, d.RegisterCallable(config.HookPreToolUse, "^bash$", func(ctx context.Context, p Payload) (Result, error) {
		fired = true
		return Result{Outcome: Continue}, nil
	}))

	d.Fire(context.Background(), config.HookPreToolUse, "edit_file", Payload{})
	assert.False(t, fired)

	d.Fire(context.Background(), config.HookPreToolUse, "bash", Payload{})
	assert.True(t, fired)
}

func TestFire_ShellExitCodes(t *testing.T) {
	d := New("/tmp", "test-swarm")

	require.NoError(t, d.RegisterShell(config.HookConfig{
		Event:   config.HookUserPrompt,
		Command: "echo -n 'replaced prompt'",
	}))
	result := d.Fire(context.Background(), config.HookUserPrompt, "", Payload{Event: config.HookUserPrompt})
	assert.Equal(t, Replace, result.Outcome)
	assert.Equal(t, "replaced prompt", result.Message)

	d2 := New("/tmp", "test-swarm")
	require.NoError(t, d2.RegisterShell(config.HookConfig{
		Event:   config.HookUserPrompt,
		Command: "echo -n 'erased'; exit 2",
	}))
	result2 := d2.Fire(context.Background(), config.HookUserPrompt, "", Payload{Event: config.HookUserPrompt})
	assert.Equal(t, Halt, result2.Outcome)
}

func TestFire_FIFOOrder(t *testing.T) {
	d := New("/tmp", "test-swarm")
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, d.RegisterCallable(config.HookAgentStop, "", func(ctx context.Context, p Payload) (Result, error) {
			order = append(order, i)
			return Result{Outcome: Continue}, nil
		}))
	}
	d.Fire(context.Background(), config.HookAgentStop, "", Payload{})
	assert.Equal(t, []int{0, 1, 2}, order)
}
