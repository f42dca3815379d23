package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns queued responses in order, one per Complete call.
type stubProvider struct {
	mu        sync.Mutex
	responses []*llms.CompleteResponse
	model     string
}

func (s *stubProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: "done"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}
func (s *stubProvider) Stateful() bool { return false }
func (s *stubProvider) Model() string  { return s.model }

type sleepyTool struct {
	name  string
	sleep time.Duration
}

func (t *sleepyTool) Name() string               { return t.name }
func (t *sleepyTool) Description() string        { return "" }
func (t *sleepyTool) Parameters() map[string]any { return nil }
func (t *sleepyTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	time.Sleep(t.sleep)
	return tools.ToolResult{Content: t.name}, nil
}

func newRegistryWithSleepers() *tools.Registry {
	r := tools.NewRegistry()
	for i, sleep := range []time.Duration{40 * time.Millisecond, 30 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond} {
		name := fmt.Sprintf("tool%d", i+1)
		sleep := sleep
		_ = r.Register(name, tools.SourceBuiltin, tools.Factory{
			Build: func(tools.Context) (tools.Tool, error) { return &sleepyTool{name: name, sleep: sleep}, nil },
		})
	}
	return r
}

func TestAsk_ReturnsFinalAssistantMessage(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	c := New(Config{AgentName: "lead", Provider: provider, Tools: tools.NewRegistry()})

	msg, err := c.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
}

func TestAroundPrompt_CanRewriteOrShortCircuit(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	c := New(Config{AgentName: "lead", Provider: provider, Tools: tools.NewRegistry()})

	var seenPrompt string
	c.AroundPrompt(func(ctx context.Context, prompt string, execute PromptFn) (llms.Message, error) {
		return execute(ctx, "rewritten: "+prompt)
	})
	c.Subscribe(SubscribeFilter{Types: []EventType{EventNewMessage}}, "capture", func(e Event) {
		if e.Message != nil && e.Message.Role == llms.RoleUser {
			seenPrompt = e.Message.Content
		}
	})

	msg, err := c.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
	assert.Equal(t, "rewritten: hello", seenPrompt)

	c.AroundPrompt(func(ctx context.Context, prompt string, execute PromptFn) (llms.Message, error) {
		return llms.Message{Role: llms.RoleAssistant, Content: "short-circuited"}, nil
	})
	msg, err = c.Ask(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "short-circuited", msg.Content)
}

func TestToolCallConcurrency_PreservesOriginalOrder(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	provider.responses = []*llms.CompleteResponse{
		{
			Role: llms.RoleAssistant,
			ToolCalls: []llms.ToolCall{
				{ID: "1", Name: "tool1"}, {ID: "2", Name: "tool2"},
				{ID: "3", Name: "tool3"}, {ID: "4", Name: "tool4"},
			},
		},
		{Role: llms.RoleAssistant, Content: "all done"},
	}

	c := New(Config{
		AgentName:      "lead",
		Provider:       provider,
		Tools:          newRegistryWithSleepers(),
		Concurrency:    StrategyThreads,
		MaxConcurrency: 4,
		ToolNames:      []string{"tool1", "tool2", "tool3", "tool4"},
	})

	msg, err := c.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "all done", msg.Content)

	var toolCallIDs []string
	for _, m := range c.Messages() {
		if m.Role == llms.RoleTool {
			toolCallIDs = append(toolCallIDs, m.ToolCallID)
		}
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, toolCallIDs)
}

func TestExecuteToolCalls_HaltShortCircuits(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	provider.responses = []*llms.CompleteResponse{
		{Role: llms.RoleAssistant, ToolCalls: []llms.ToolCall{{ID: "1", Name: "halter"}}},
	}

	r := tools.NewRegistry()
	_ = r.Register("halter", tools.SourceBuiltin, tools.Factory{
		Build: func(tools.Context) (tools.Tool, error) { return haltingTool{}, nil },
	})

	c := New(Config{AgentName: "lead", Provider: provider, Tools: r, ToolNames: []string{"halter"}})

	msg, err := c.Ask(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "stopped here", msg.Content)
}

type haltingTool struct{}

func (haltingTool) Name() string               { return "halter" }
func (haltingTool) Description() string        { return "" }
func (haltingTool) Parameters() map[string]any { return nil }
func (haltingTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	return tools.ToolResult{Content: "stopped here", Halt: true}, nil
}

func TestSubscribe_Unsubscribe_Idempotent(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	c := New(Config{AgentName: "lead", Provider: provider, Tools: tools.NewRegistry()})

	var count int
	sub := c.Subscribe(SubscribeFilter{}, "test", func(Event) { count++ })

	_, _ = c.Ask(context.Background(), "hi")
	assert.Greater(t, count, 0)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	before := count
	_, _ = c.Ask(context.Background(), "hi again")
	assert.Equal(t, before, count)
}

func TestAccountContextWindow_EstimatesUntrackedMessages(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	// "done" has no InputTokens/OutputTokens set by stubProvider, so the
	// only way this fires is the chat's TokenCounter (BPE counts, or the
	// EstimateTokens fallback when no encoding loads) counting the user
	// prompt and assistant reply together past 50% of a tiny window.
	c := New(Config{
		AgentName:     "lead",
		Provider:      provider,
		Tools:         tools.NewRegistry(),
		ContextWindow: 10,
	})

	var warned bool
	c.Subscribe(SubscribeFilter{Types: []EventType{EventContextWarning}}, "warn", func(Event) { warned = true })

	_, err := c.Ask(context.Background(), "a reasonably long prompt to cross the threshold")
	require.NoError(t, err)
	assert.True(t, warned)
}

// statefulStubProvider lets a single queued error be returned from Complete,
// for exercising continuity's not-found-specific disable logic.
type statefulStubProvider struct {
	model string
	err   error
}

func (s *statefulStubProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: "done"}, nil
}
func (s *statefulStubProvider) Stateful() bool { return true }
func (s *statefulStubProvider) Model() string  { return s.model }

func TestMaybeRecordNotFound_OnlyDisablesOnNotFoundSentinel(t *testing.T) {
	provider := &statefulStubProvider{model: "stub"}
	c := New(Config{AgentName: "lead", Provider: provider, Tools: tools.NewRegistry()})

	provider.err = fmt.Errorf("wrap: %w", errors.New("exhausted retries"))
	_, err := c.Ask(context.Background(), "hi")
	require.Error(t, err)
	assert.False(t, c.continuity.Disabled())

	_, err = c.Ask(context.Background(), "hi again")
	require.Error(t, err)
	assert.False(t, c.continuity.Disabled(), "unrelated failures must never erode continuity")

	provider.err = fmt.Errorf("wrap: %w", llms.ErrResponseNotFound)
	_, err = c.Ask(context.Background(), "third")
	require.Error(t, err)
	assert.False(t, c.continuity.Disabled(), "one not-found strike isn't enough")

	_, err = c.Ask(context.Background(), "fourth")
	require.Error(t, err)
	assert.True(t, c.continuity.Disabled(), "two consecutive not-found strikes disables continuity")
}

func TestReset_PreservesSystemMessages(t *testing.T) {
	provider := &stubProvider{model: "stub"}
	c := New(Config{AgentName: "lead", SystemPrompt: "you are a helper", Provider: provider, Tools: tools.NewRegistry()})

	_, _ = c.Ask(context.Background(), "hi")
	c.Reset(true)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, llms.RoleSystem, msgs[0].Role)
}
