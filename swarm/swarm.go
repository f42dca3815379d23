// Package swarm implements Swarm composition (spec.md §4.5): construct-time
// validation of the agent/workflow/delegation graph, lazy per-agent Chat
// initialization, a single execute(prompt) entry point that emits
// swarm_start/swarm_stop/swarm_error lifecycle events, and idempotent
// cleanup of observers and MCP clients.
//
// Grounded on the teacher's team/team.go (Team owns SharedState, an
// Initialize(ctx) construct-time validation pass, and ExecuteStreaming as
// the single entry point), generalized from hector's single-workflow Team
// to the spec's lazily-initialized multi-agent Swarm with a delegation
// graph instead of a capability-routed DAG.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/delegation"
	"github.com/kestrelai/swarmkit/hook"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/mcpadapter"
	"github.com/kestrelai/swarmkit/observability"
	"github.com/kestrelai/swarmkit/observer"
	"github.com/kestrelai/swarmkit/plugin"
	"github.com/kestrelai/swarmkit/scratchpad"
	"github.com/kestrelai/swarmkit/tools"
)

// Cleaner is implemented by anything Swarm must tear down idempotently on
// Close (MCP clients, plugin processes).
type Cleaner interface {
	Close() error
}

// Config bundles everything needed to construct a Swarm from a loaded
// config.Config plus the runtime collaborators (provider factory, tool
// registry, log sink) the config alone cannot express.
type Config struct {
	Name       string
	Cfg        *config.Config
	Providers  *llms.Registry
	Tools      *tools.Registry
	Stream     *logstream.LogStream
	MaxDepth   int
	Recorder   *observability.Recorder // nil disables metrics, per observability.NewRecorder
	Plugins    *plugin.Manager          // nil disables plugin_tools resolution
}

// Swarm is one running multi-agent composition.
type Swarm struct {
	cfg   Config
	graph *delegation.Graph

	mu         sync.Mutex
	chats      map[string]*chat.Chat // lazily populated lead agents
	scratchpad *scratchpad.Scratchpad
	readTrack  *scratchpad.ReadTracker
	observers  *observer.Manager
	hooks      *hook.Dispatcher // swarm_start/swarm_stop bindings, aggregated from every agent's Hooks

	cleanupMu sync.Mutex
	cleanups  []Cleaner
	closed    bool
}

// New validates cfg.Cfg's agent/delegation graph and constructs a Swarm.
// Chat instances are not created until Execute or a delegation requests
// them, per spec.md §4.5's "lazy initialization".
func New(cfg Config) (*Swarm, error) {
	if cfg.Cfg == nil {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "Swarm", "New", "nil config", nil)
	}

	delegatesTo := make(map[string][]string, len(cfg.Cfg.Agents))
	shared := make(map[string]bool)
	for name, agent := range cfg.Cfg.Agents {
		delegatesTo[name] = agent.DelegatesTo
		if agent.Flags.SharedAcrossDelegations {
			shared[name] = true
		}
	}
	if err := delegation.ValidateConfig(delegatesTo); err != nil {
		return nil, err
	}

	s := &Swarm{
		cfg:        cfg,
		chats:      make(map[string]*chat.Chat),
		scratchpad: scratchpad.New(scratchpad.ModeEnabled),
		readTrack:  scratchpad.NewReadTracker(),
		observers:  observer.NewManager(),
		hooks:      hook.New("", cfg.Name),
	}
	s.graph = delegation.New(s.buildChat, shared, cfg.MaxDepth)
	for _, agentCfg := range cfg.Cfg.Agents {
		for _, hcfg := range agentCfg.Hooks[config.HookSwarmStart] {
			_ = s.hooks.RegisterShell(hcfg)
		}
		for _, hcfg := range agentCfg.Hooks[config.HookSwarmStop] {
			_ = s.hooks.RegisterShell(hcfg)
		}
	}

	if cfg.Stream != nil {
		for name, ocfg := range cfg.Cfg.Observers {
			s.registerObserver(name, ocfg)
		}
	}
	s.RegisterCleanup(s.observers)
	return s, nil
}

// registerObserver wires one config-declared ObserverConfig onto the
// swarm's LogStream, per spec.md §4.7.
func (s *Swarm) registerObserver(name string, ocfg config.ObserverConfig) {
	s.observers.Add(s.cfg.Stream, observer.Config{
		Name: name,
		Filter: logstream.Filter{
			Type: ocfg.EventType,
			Tool: ocfg.ToolName,
		},
		Prompt: func(e logstream.Event) (string, bool) {
			return renderObserverPrompt(ocfg.PromptTemplate, e), true
		},
		ChatFactory:       func() (*chat.Chat, error) { return s.buildChat(ocfg.TriggerAgent) },
		MaxConcurrency:    ocfg.MaxConcurrency,
		WaitForCompletion: ocfg.WaitForCompletion,
	})
}

// renderObserverPrompt substitutes {{type}}/{{agent}}/{{tool}} in tmpl with
// the triggering event's fields.
func renderObserverPrompt(tmpl string, e logstream.Event) string {
	r := strings.NewReplacer(
		"{{type}}", e.Type,
		"{{agent}}", e.Agent,
		"{{tool}}", e.Tool,
	)
	return r.Replace(tmpl)
}

// buildChat constructs (but does not cache) a fresh Chat for agentName;
// delegation.Graph is the actual cache owner.
func (s *Swarm) buildChat(agentName string) (*chat.Chat, error) {
	agentCfg, ok := s.cfg.Cfg.Agents[agentName]
	if !ok {
		return nil, swarmerr.New(swarmerr.KindAgentNotFound, "Swarm", "buildChat",
			fmt.Sprintf("no agent named %q in configuration", agentName), nil)
	}

	providerCfg, ok := s.cfg.Cfg.Providers[agentCfg.Provider]
	if !ok {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "Swarm", "buildChat",
			fmt.Sprintf("agent %q references unknown provider %q", agentName, agentCfg.Provider), nil)
	}
	provider, err := s.cfg.Providers.Build(providerCfg)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindLLM, "Swarm", "buildChat", "failed to build provider", err)
	}

	toolReg := s.cfg.Tools
	needsOwnRegistry := len(agentCfg.DelegatesTo) > 0 || len(agentCfg.MCPServers) > 0 || len(agentCfg.PluginTools) > 0
	if needsOwnRegistry {
		toolReg = s.cfg.Tools.Clone()
	}
	if len(agentCfg.DelegatesTo) > 0 {
		if err := s.graph.Install(toolReg, agentName, agentCfg.DelegatesTo); err != nil {
			return nil, swarmerr.New(swarmerr.KindConfiguration, "Swarm", "buildChat",
				"failed to install delegation tools", err)
		}
	}

	mcpToolNames, err := s.installMCPServers(toolReg, agentCfg.MCPServers)
	if err != nil {
		return nil, swarmerr.New(swarmerr.KindConfiguration, "Swarm", "buildChat",
			fmt.Sprintf("agent %q: failed to install MCP tools", agentName), err)
	}

	var pluginToolNames []string
	if s.cfg.Plugins != nil && len(agentCfg.PluginTools) > 0 {
		pluginToolNames, err = s.cfg.Plugins.ComposeTools(toolReg, agentCfg)
		if err != nil {
			return nil, swarmerr.New(swarmerr.KindConfiguration, "Swarm", "buildChat",
				fmt.Sprintf("agent %q: failed to install plugin tools", agentName), err)
		}
	}

	toolNames := make([]string, 0, len(agentCfg.Tools)+len(agentCfg.DelegatesTo)+len(mcpToolNames)+len(pluginToolNames))
	for _, ref := range agentCfg.Tools {
		toolNames = append(toolNames, ref.Name)
	}
	toolNames = append(toolNames, agentCfg.DelegatesTo...)
	toolNames = append(toolNames, mcpToolNames...)
	toolNames = append(toolNames, pluginToolNames...)

	c := chat.New(chat.Config{
		AgentName:    agentName,
		SystemPrompt: agentCfg.SystemPrompt,
		Provider:     provider,
		Tools:        toolReg,
		ToolContext: tools.Context{
			AgentName:   agentName,
			Directory:   agentCfg.WorkingDir,
			Scratchpad:  s.scratchpad,
			ReadTracker: s.readTrack,
		},
		ToolNames:      toolNames,
		ContextWindow:  providerCfg.ContextWindow,
		MaxConcurrency: agentCfg.MaxConcurrency,
		Stream:         s.cfg.Stream,
	})
	dispatcher := s.buildHookDispatcher(agentName, agentCfg)
	s.instrument(c, agentName, agentCfg.Provider, dispatcher)

	dispatcher.Fire(context.Background(), config.HookSessionStart, "", hook.Payload{
		Event: config.HookSessionStart, Agent: agentName, Swarm: s.cfg.Name,
	})
	return c, nil
}

// buildHookDispatcher constructs agentName's per-agent hook.Dispatcher from
// its declared Hooks (spec.md §4.6). swarm_start/swarm_stop entries are
// registered here too but never fired from a per-agent code path; Execute
// fires those from the swarm-wide dispatcher built in New instead.
func (s *Swarm) buildHookDispatcher(agentName string, agentCfg config.AgentConfig) *hook.Dispatcher {
	d := hook.New(agentCfg.WorkingDir, s.cfg.Name)
	for event, hooks := range agentCfg.Hooks {
		for _, hcfg := range hooks {
			hcfg.Event = event
			_ = d.RegisterShell(hcfg)
		}
	}
	return d
}

// instrument installs metric-recording and hook-dispatching middleware
// around every tool call, LLM round-trip, and Ask turn c makes. A nil
// Recorder makes every Record* call a no-op, so this still runs
// unconditionally rather than branching on s.cfg.Recorder == nil.
func (s *Swarm) instrument(c *chat.Chat, agentName, providerName string, dispatcher *hook.Dispatcher) {
	c.AroundToolExecution(func(ctx context.Context, call llms.ToolCall, execute chat.ToolExecutionFn) (tools.ToolResult, error) {
		pre := dispatcher.Fire(ctx, config.HookPreToolUse, call.Name, hook.Payload{
			Event: config.HookPreToolUse, Agent: agentName, Swarm: s.cfg.Name,
			Tool: call.Name, Parameters: call.Arguments,
		})
		if pre.Outcome == hook.Halt {
			return tools.ToolResult{Halt: true, Content: pre.Message}, nil
		}

		start := time.Now()
		result, err := execute(ctx, call)
		recordErr := err
		if recordErr == nil && result.Error != "" {
			recordErr = errors.New(result.Error)
		}
		s.cfg.Recorder.RecordToolExecution(ctx, call.Name, time.Since(start).Seconds(), recordErr)

		post := dispatcher.Fire(ctx, config.HookPostToolUse, call.Name, hook.Payload{
			Event: config.HookPostToolUse, Agent: agentName, Swarm: s.cfg.Name,
			Tool: call.Name, Parameters: call.Arguments,
		})
		if post.Outcome == hook.Halt {
			return tools.ToolResult{Halt: true, Content: post.Message}, err
		}
		return result, err
	})
	c.AroundLLMRequest(func(ctx context.Context, req llms.CompleteRequest, execute chat.LLMRequestFn) (*llms.CompleteResponse, error) {
		start := time.Now()
		resp, err := execute(ctx, req)
		var in, out int64
		if resp != nil {
			in, out = int64(resp.InputTokens), int64(resp.OutputTokens)
		}
		s.cfg.Recorder.RecordLLMCall(ctx, providerName, req.Model, time.Since(start).Seconds(), in, out, err)
		return resp, err
	})
	c.AroundPrompt(func(ctx context.Context, prompt string, execute chat.PromptFn) (llms.Message, error) {
		pre := dispatcher.Fire(ctx, config.HookUserPrompt, "", hook.Payload{
			Event: config.HookUserPrompt, Agent: agentName, Swarm: s.cfg.Name,
		})
		switch pre.Outcome {
		case hook.Halt:
			return llms.Message{Role: llms.RoleAssistant, Content: pre.Message}, nil
		case hook.Replace:
			prompt = pre.Message
		}

		result, err := execute(ctx, prompt)

		dispatcher.Fire(ctx, config.HookAgentStop, "", hook.Payload{
			Event: config.HookAgentStop, Agent: agentName, Swarm: s.cfg.Name,
		})
		return result, err
	})
	c.Subscribe(chat.SubscribeFilter{Types: []chat.EventType{chat.EventContextWarning}}, "hook:context_warning", func(e chat.Event) {
		dispatcher.Fire(context.Background(), config.HookContextWarn, "", hook.Payload{
			Event: config.HookContextWarn, Agent: agentName, Swarm: s.cfg.Name,
		})
	})
}

// installMCPServers connects every configured MCP server and registers its
// advertised tools into reg under tools.SourceMCP, per spec.md §6. Each
// live connection is registered as a Cleaner so Swarm.Close stops it
// alongside every other external process this swarm owns.
func (s *Swarm) installMCPServers(reg *tools.Registry, servers []config.MCPServerConfig) ([]string, error) {
	var names []string
	for _, mcfg := range servers {
		adapter, err := mcpadapter.Connect(context.Background(), mcpadapter.Config{
			Name:      mcfg.Name,
			Transport: mcpadapter.Transport(mcfg.Transport),
			Command:   mcfg.Command,
			Args:      mcfg.Args,
			Env:       mcfg.Env,
			URL:       mcfg.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: %w", mcfg.Name, err)
		}
		s.RegisterCleanup(mcpCloser{adapter})

		factories, err := mcpadapter.Tools(context.Background(), adapter)
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: listing tools: %w", mcfg.Name, err)
		}
		for name, factory := range factories {
			if err := reg.Register(name, tools.SourceMCP, factory); err != nil {
				return nil, fmt.Errorf("mcp server %q: %w", mcfg.Name, err)
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// mcpCloser adapts mcpadapter.Adapter's Stop() to the Cleaner interface.
type mcpCloser struct{ a mcpadapter.Adapter }

func (c mcpCloser) Close() error { return c.a.Stop() }

// leadChat returns (creating if necessary) the Chat instance for the
// swarm's designated lead agent.
func (s *Swarm) leadChat() (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead := s.cfg.Cfg.Lead
	if lead == "" {
		for name := range s.cfg.Cfg.Agents {
			lead = name
			break
		}
	}
	if c, ok := s.chats[lead]; ok {
		return c, nil
	}
	c, err := s.buildChat(lead)
	if err != nil {
		return nil, err
	}
	s.chats[lead] = c
	return c, nil
}

// Execute runs prompt through the swarm's lead agent, emitting
// swarm_start/swarm_stop/swarm_error lifecycle events on the configured
// LogStream, per spec.md §4.5.
func (s *Swarm) Execute(ctx context.Context, prompt string) (string, error) {
	executionID := uuid.NewString()
	s.emit("swarm_start", executionID)

	if r := s.hooks.Fire(ctx, config.HookSwarmStart, "", hook.Payload{Event: config.HookSwarmStart, Swarm: s.cfg.Name}); r.Outcome == hook.Halt {
		s.emit("swarm_stop", executionID)
		return r.Message, nil
	}

	c, err := s.leadChat()
	if err != nil {
		s.emit("swarm_error", executionID)
		return "", err
	}

	ctx = delegation.WithDepth(ctx, 0)
	msg, err := c.Ask(ctx, prompt)
	if err != nil {
		s.emit("swarm_error", executionID)
		return "", err
	}

	s.hooks.Fire(ctx, config.HookSwarmStop, "", hook.Payload{Event: config.HookSwarmStop, Swarm: s.cfg.Name})
	s.emit("swarm_stop", executionID)
	s.observers.WaitAll()
	return msg.Content, nil
}

func (s *Swarm) emit(eventType, executionID string) {
	if s.cfg.Stream == nil {
		return
	}
	s.cfg.Stream.Emit(logstream.Event{
		Type:  eventType,
		Swarm: s.cfg.Name,
		Fields: map[string]any{
			"execution_id": executionID,
		},
	})
}

// RegisterCleanup adds c to the set closed by Close, in registration order.
func (s *Swarm) RegisterCleanup(c Cleaner) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, c)
}

// Close idempotently tears down every registered cleanup (MCP clients,
// plugin processes, observers) and clears the delegation cache.
func (s *Swarm) Close() error {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, c := range s.cleanups {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.graph.Clear()
	return firstErr
}

// Config exposes the loaded configuration (used by snapshot capture/restore
// to classify which agent/delegation names are still declared).
func (s *Swarm) Config() *config.Config { return s.cfg.Cfg }

// NewAgentChat constructs a fresh, uncached Chat for the named agent the
// same way the delegation graph's factory would. Used by snapshot restore
// to materialize a delegation instance the graph hasn't created yet in this
// process, without polluting the top-level agent cache AgentChat maintains.
func (s *Swarm) NewAgentChat(name string) (*chat.Chat, error) {
	return s.buildChat(name)
}

// AgentChat returns (creating and caching if necessary) the Chat instance
// for the named top-level agent. Used by snapshot restore to materialize an
// agent entry that isn't the lead and hasn't been touched yet.
func (s *Swarm) AgentChat(name string) (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[name]; ok {
		return c, nil
	}
	c, err := s.buildChat(name)
	if err != nil {
		return nil, err
	}
	s.chats[name] = c
	return c, nil
}

// Chats returns a snapshot copy of the top-level agent Chat cache (lead plus
// any agent materialized via AgentChat), keyed by agent name.
func (s *Swarm) Chats() map[string]*chat.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*chat.Chat, len(s.chats))
	for k, v := range s.chats {
		out[k] = v
	}
	return out
}

// Graph exposes the delegation graph (used by snapshot capture/restore).
func (s *Swarm) Graph() *delegation.Graph { return s.graph }

// Scratchpad exposes the swarm-wide scratchpad (used by snapshot capture).
func (s *Swarm) Scratchpad() *scratchpad.Scratchpad { return s.scratchpad }

// ReadTracker exposes the swarm-wide read tracker (used by snapshot capture).
func (s *Swarm) ReadTracker() *scratchpad.ReadTracker { return s.readTrack }
