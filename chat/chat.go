// Package chat implements the Agent Chat Engine (spec.md §4.1): the
// per-agent conversation state machine that drives the LLM/tool loop, tool
// fan-out concurrency strategies, context-window accounting, subscriptions,
// and around-hooks.
//
// Grounded on the teacher's agent/agent.go execute() loop shape (iterate up
// to maxIterations: build messages -> call LLM -> execute tools -> check
// stop condition) generalized to the spec's five-step loop, halt sentinel,
// and concurrency strategies the teacher's sequential-only executeTools did
// not have.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/kestrelai/swarmkit/utils"
)

// EventType enumerates the events a Chat emits onto its LogStream and to
// its own subscribers.
type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventEndMessage     EventType = "end_message"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventContextWarning EventType = "context_warning"
)

// Event is delivered to Chat subscribers (a thin projection of
// logstream.Event scoped to this Chat instance).
type Event struct {
	Type    EventType
	Message *llms.Message
	Call    *llms.ToolCall
	Result  *tools.ToolResult
}

// SubscribeFilter optionally restricts which EventTypes a subscriber sees;
// a nil slice matches every type.
type SubscribeFilter struct {
	Types []EventType
}

func (f SubscribeFilter) matches(t EventType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, et := range f.Types {
		if et == t {
			return true
		}
	}
	return false
}

// Subscription is returned by Chat.Subscribe; its Unsubscribe is idempotent.
type Subscription struct {
	id   string
	chat *Chat
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s Subscription) Unsubscribe() {
	s.chat.subMu.Lock()
	defer s.chat.subMu.Unlock()
	delete(s.chat.subs, s.id)
}

type subEntry struct {
	filter SubscribeFilter
	tag    string
	fn     func(Event)
}

// ContextState tracks context-window accounting and compaction bookkeeping
// for one Chat instance, per spec.md §3.
type ContextState struct {
	WarningThresholdsHit     map[int]bool
	CompressionApplied       bool
	LastTodowriteMessageIdx  *int
	ActiveSkillPath          *string
}

func newContextState() *ContextState {
	return &ContextState{WarningThresholdsHit: make(map[int]bool)}
}

// Compactor rewrites message history when the context window is under
// pressure. External collaborators implement this; the engine only knows
// the interface (SPEC_FULL.md §5 supplemented feature).
type Compactor interface {
	Compact(messages []llms.Message) ([]llms.Message, error)
}

// ToolExecutionFn is the continuation an around_tool_execution wrapper
// invokes to perform the actual tool call.
type ToolExecutionFn func(ctx context.Context, call llms.ToolCall) (tools.ToolResult, error)

// ToolExecutionMiddleware wraps every tool execution.
type ToolExecutionMiddleware func(ctx context.Context, call llms.ToolCall, execute ToolExecutionFn) (tools.ToolResult, error)

// LLMRequestFn is the continuation an around_llm_request wrapper invokes to
// perform the actual provider call.
type LLMRequestFn func(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error)

// LLMRequestMiddleware wraps every provider call.
type LLMRequestMiddleware func(ctx context.Context, req llms.CompleteRequest, execute LLMRequestFn) (*llms.CompleteResponse, error)

// PromptFn is the continuation an around_prompt wrapper invokes to run the
// actual Ask turn.
type PromptFn func(ctx context.Context, prompt string) (llms.Message, error)

// PromptMiddleware wraps every Ask call, top-level or delegated, letting a
// caller substitute the prompt or short-circuit the turn entirely before
// execute runs (the Hook Dispatcher's user_prompt/agent_stop events, per
// spec.md §4.6, hang off this).
type PromptMiddleware func(ctx context.Context, prompt string, execute PromptFn) (llms.Message, error)

// ConcurrencyStrategy names one of the three tool fan-out strategies spec.md
// §4.1 describes.
type ConcurrencyStrategy string

const (
	StrategySequential     ConcurrencyStrategy = "sequential"
	StrategyThreads        ConcurrencyStrategy = "threads"
	StrategyCooperative    ConcurrencyStrategy = "cooperative_tasks"
)

// Thresholds are the context-window percentages that trigger a
// context_warning event at most once each.
var defaultThresholds = []float64{0.50, 0.80, 0.95}

// Config bundles the construction-time settings for a Chat.
type Config struct {
	AgentName       string
	SystemPrompt    string
	Provider        llms.Provider
	Tools           *tools.Registry
	ToolContext     tools.Context
	ToolNames       []string
	MaxIterations   int
	ContextWindow   int
	Concurrency     ConcurrencyStrategy
	MaxConcurrency  int
	Thresholds      []float64
	Stream          *logstream.LogStream
	Compactor       Compactor
}

// Chat is one Agent Chat Instance (spec.md §3): a mutable, single-owner
// conversation loop.
type Chat struct {
	cfg      Config
	mu       sync.Mutex // serializes message-list mutation (per-chat monitor, spec.md §5)
	messages []llms.Message

	contextState *ContextState
	continuity   *llms.ContinuityTracker
	tokens       *utils.TokenCounter

	subMu sync.Mutex
	subs  map[string]*subEntry
	seq   int

	aroundTool   ToolExecutionMiddleware
	aroundLLM    LLMRequestMiddleware
	aroundPrompt PromptMiddleware
}

// New constructs a Chat. The system prompt, if any, is appended as the
// first message immediately.
func New(cfg Config) *Chat {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 25
	}
	if cfg.Concurrency == "" {
		cfg.Concurrency = StrategySequential
	}
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = defaultThresholds
	}

	var model string
	if cfg.Provider != nil {
		model = cfg.Provider.Model()
	}

	c := &Chat{
		cfg:          cfg,
		contextState: newContextState(),
		continuity:   &llms.ContinuityTracker{},
		tokens:       utils.NewTokenCounter(model),
		subs:         make(map[string]*subEntry),
	}
	if cfg.SystemPrompt != "" {
		c.messages = append(c.messages, llms.Message{Role: llms.RoleSystem, Content: cfg.SystemPrompt})
	}
	return c
}

// Subscribe registers fn for events matching filter, tagged for diagnostics.
func (c *Chat) Subscribe(filter SubscribeFilter, tag string, fn func(Event)) Subscription {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.seq++
	id := fmt.Sprintf("%s-%d", tag, c.seq)
	c.subs[id] = &subEntry{filter: filter, tag: tag, fn: fn}
	return Subscription{id: id, chat: c}
}

// AroundToolExecution installs the single tool-execution wrapping hook,
// replacing any previous one.
func (c *Chat) AroundToolExecution(mw ToolExecutionMiddleware) {
	c.aroundTool = mw
}

// AroundLLMRequest installs the single LLM-request wrapping hook, replacing
// any previous one.
func (c *Chat) AroundLLMRequest(mw LLMRequestMiddleware) {
	c.aroundLLM = mw
}

// AroundPrompt installs the single prompt-wrapping hook, replacing any
// previous one. It wraps every Ask call made on this Chat, including
// delegated ones (delegation.Graph.Delegate calls Ask on the same instance).
func (c *Chat) AroundPrompt(mw PromptMiddleware) {
	c.aroundPrompt = mw
}

func (c *Chat) emit(e Event) {
	c.subMu.Lock()
	entries := make([]*subEntry, 0, len(c.subs))
	for _, entry := range c.subs {
		entries = append(entries, entry)
	}
	c.subMu.Unlock()

	for _, entry := range entries {
		if entry.filter.matches(e.Type) {
			entry.fn(e)
		}
	}

	if c.cfg.Stream != nil {
		fields := map[string]any{}
		c.cfg.Stream.Emit(logstream.Event{
			Type:   string(e.Type),
			Agent:  c.cfg.AgentName,
			Fields: fields,
		})
	}
}

// ReplaceMessages atomically replaces the message list (used by Restore).
func (c *Chat) ReplaceMessages(messages []llms.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append([]llms.Message(nil), messages...)
}

// Reset wipes the message list, optionally preserving system messages.
func (c *Chat) Reset(preserveSystem bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !preserveSystem {
		c.messages = nil
		return
	}
	kept := make([]llms.Message, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Role == llms.RoleSystem {
			kept = append(kept, m)
		}
	}
	c.messages = kept
}

// Messages returns a snapshot copy of the current message list.
func (c *Chat) Messages() []llms.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llms.Message(nil), c.messages...)
}

// ContextState returns the live context-state pointer (read by
// snapshot.Capture).
func (c *Chat) ContextState() *ContextState {
	return c.contextState
}

// turnTimeoutErr builds the typed turn-timeout error spec.md §4.1/§7
// names.
func turnTimeoutErr(agent string, err error) error {
	return swarmerr.New(swarmerr.KindTurnTimeout, "Chat", "ask", "turn timed out for agent "+agent, err)
}

// Ask appends a user message and runs the LLM/tool loop to completion,
// returning the final assistant message. See loop.go for the five-step
// implementation.
func (c *Chat) Ask(ctx context.Context, prompt string) (llms.Message, error) {
	execute := func(ctx context.Context, prompt string) (llms.Message, error) {
		c.appendMessage(llms.Message{Role: llms.RoleUser, Content: prompt})
		c.emit(Event{Type: EventNewMessage, Message: &c.messages[len(c.messages)-1]})

		result, err := c.runLoop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return llms.Message{}, turnTimeoutErr(c.cfg.AgentName, ctx.Err())
			}
			return llms.Message{}, err
		}
		return result, nil
	}
	if c.aroundPrompt != nil {
		return c.aroundPrompt(ctx, prompt, execute)
	}
	return execute(ctx, prompt)
}

func (c *Chat) appendMessage(m llms.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func (c *Chat) snapshotMessages() []llms.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llms.Message(nil), c.messages...)
}

// executionID returns a fresh correlation id. It is unexported, so only
// code inside package chat can call it.
func executionID() string { return uuid.NewString() }
