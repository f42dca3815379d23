// Package snapshot implements State Snapshot/Restore (spec.md §4.9): a
// versioned JSON document capturing every agent Chat's conversation and
// context-state, every cached delegation instance, the shared scratchpad,
// and read-tracking (plugin_states is always written empty and is not
// read back on restore), plus a three-phase, never-raising
// Restore that rehydrates whatever is still valid against a (possibly
// different) current configuration.
//
// Grounded on pkg/checkpoint/state.go's State type (Phase/Type constants,
// the Serialize/Deserialize and With* builder-method shape) generalized
// from single-agent execution-resume checkpoints to whole-Swarm
// conversation snapshots, and on chat.ReplaceMessages/ContextState and
// scratchpad.Restore/ReadTracker.Restore, which exist specifically to back
// this package's three-phase restore.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/scratchpad"
	"github.com/kestrelai/swarmkit/swarm"
)

// Version is the only schema version this package accepts on restore, per
// spec.md §6's "bit-exact" schema.
const Version = "2.1.0"

// Type names whether a Snapshot captures a Swarm or a Workflow execution.
type Type string

const (
	TypeSwarm    Type = "swarm"
	TypeWorkflow Type = "workflow"
)

// Message mirrors llms.Message in the wire shape spec.md §6 names.
type Message struct {
	Role         llms.Role      `json:"role"`
	Content      string         `json:"content"`
	ToolCalls    []llms.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID   string         `json:"tool_call_id,omitempty"`
	InputTokens  int            `json:"input_tokens,omitempty"`
	OutputTokens int            `json:"output_tokens,omitempty"`
	ModelID      string         `json:"model_id,omitempty"`
}

func toWireMessage(m llms.Message) Message {
	return Message{
		Role:         m.Role,
		Content:      m.Content,
		ToolCalls:    m.ToolCalls,
		ToolCallID:   m.ToolCallID,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		ModelID:      m.ModelID,
	}
}

func fromWireMessage(m Message) llms.Message {
	return llms.Message{
		Role:         m.Role,
		Content:      m.Content,
		ToolCalls:    m.ToolCalls,
		ToolCallID:   m.ToolCallID,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		ModelID:      m.ModelID,
	}
}

// ContextState mirrors chat.ContextState in the wire shape spec.md §6 names.
type ContextState struct {
	WarningThresholdsHit     []int   `json:"warning_thresholds_hit"`
	CompressionApplied       bool    `json:"compression_applied"`
	LastTodowriteMessageIdx  *int    `json:"last_todowrite_message_index"`
	ActiveSkillPath          *string `json:"active_skill_path"`
}

func toWireContextState(cs *chat.ContextState) ContextState {
	hits := make([]int, 0, len(cs.WarningThresholdsHit))
	for k, v := range cs.WarningThresholdsHit {
		if v {
			hits = append(hits, k)
		}
	}
	return ContextState{
		WarningThresholdsHit:    hits,
		CompressionApplied:      cs.CompressionApplied,
		LastTodowriteMessageIdx: cs.LastTodowriteMessageIdx,
		ActiveSkillPath:         cs.ActiveSkillPath,
	}
}

// AgentEntry is one agent's (or delegation instance's) captured state, per
// spec.md §6's "agents"/"delegation_instances" entry shape.
type AgentEntry struct {
	SystemPrompt string       `json:"system_prompt"`
	Conversation []Message    `json:"conversation"`
	ContextState ContextState `json:"context_state"`
}

func captureAgentEntry(c *chat.Chat, systemPrompt string) AgentEntry {
	msgs := c.Messages()
	conv := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		conv = append(conv, toWireMessage(m))
	}
	return AgentEntry{
		SystemPrompt: systemPrompt,
		Conversation: conv,
		ContextState: toWireContextState(c.ContextState()),
	}
}

// ScratchpadEntry is one swarm-scratchpad key's captured value, per spec.md
// §6's swarm-mode scratchpad shape.
type ScratchpadEntry struct {
	Value any       `json:"value"`
	Agent string    `json:"agent"`
	TS    time.Time `json:"ts"`
}

// Snapshot is the full versioned document described by spec.md §6.
type Snapshot struct {
	Version string         `json:"version"`
	Type    Type           `json:"type"`
	Metadata map[string]any `json:"metadata"`

	Agents             map[string]AgentEntry `json:"agents"`
	DelegationInstances map[string]AgentEntry `json:"delegation_instances"`

	Scratchpad map[string]ScratchpadEntry `json:"scratchpad"`

	ReadTracking map[string]map[string]string `json:"read_tracking"`

	PluginStates map[string]map[string]any `json:"plugin_states"`
}

// Capture builds a Snapshot of s's entire live state: every materialized
// top-level agent Chat, every cached delegation instance, the shared
// scratchpad, and read-tracking. PluginStates is always an empty map:
// Capture does not collect state from the swarm's plugins.
func Capture(s *swarm.Swarm, metadata map[string]any) (*Snapshot, error) {
	cfg := s.Config()

	agents := make(map[string]AgentEntry)
	for name, c := range s.Chats() {
		agents[name] = captureAgentEntry(c, cfg.Agents[name].SystemPrompt)
	}

	delegations := make(map[string]AgentEntry)
	for key, c := range s.Graph().Instances() {
		callee := strings.SplitN(key, "@", 2)[0]
		delegations[key] = captureAgentEntry(c, cfg.Agents[callee].SystemPrompt)
	}

	pad := make(map[string]ScratchpadEntry)
	for k, e := range s.Scratchpad().All() {
		pad[k] = ScratchpadEntry{Value: e.Value, Agent: e.Agent, TS: e.Timestamp}
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Snapshot{
		Version:             Version,
		Type:                TypeSwarm,
		Metadata:            metadata,
		Agents:              agents,
		DelegationInstances: delegations,
		Scratchpad:          pad,
		ReadTracking:        s.ReadTracker().Snapshot(),
		PluginStates:        map[string]map[string]any{},
	}, nil
}

// Serialize marshals snap to the bit-exact JSON schema spec.md §6 names.
func (snap *Snapshot) Serialize() ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// Deserialize parses data into a Snapshot without validating it (Restore
// does that as phase 1).
func Deserialize(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, swarmerr.New(swarmerr.KindState, "snapshot", "Deserialize", "malformed snapshot JSON", err)
	}
	return &snap, nil
}

// Options controls Restore behavior.
type Options struct {
	// PreserveSystemPrompts restores each entry's historical system prompt
	// verbatim instead of prepending the current agent's configured one.
	PreserveSystemPrompts bool
}

// RestoreResult reports what Restore actually did: it never raises on
// partial mismatch between the snapshot and the current configuration,
// per spec.md §4.9.
type RestoreResult struct {
	Warnings          []string
	SkippedAgents     []string
	SkippedDelegations []string
}

func (r *RestoreResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Restore rehydrates s from snap in three phases: (1) validate version and
// type; (2) classify each snapshot agent/delegation entry as restorable or
// skipped against s's current configuration; (3) for restorable entries,
// build the full message list (current system prompt by default, or the
// historical one if opts.PreserveSystemPrompts) and replace the live Chat's
// messages, then restore scratchpad/read-tracking state.
func Restore(s *swarm.Swarm, snap *Snapshot, opts Options) (*RestoreResult, error) {
	result := &RestoreResult{}

	// Phase 1: validate version and type.
	if snap.Version != Version {
		return nil, swarmerr.New(swarmerr.KindState, "snapshot", "Restore",
			fmt.Sprintf("unsupported snapshot version %q (want %q)", snap.Version, Version), nil)
	}
	if snap.Type != TypeSwarm {
		return nil, swarmerr.New(swarmerr.KindState, "snapshot", "Restore",
			fmt.Sprintf("snapshot type %q does not match current orchestration type %q", snap.Type, TypeSwarm), nil)
	}

	cfg := s.Config()

	// Phase 2 + 3: classify and restore top-level agents.
	for name, entry := range snap.Agents {
		agentCfg, ok := cfg.Agents[name]
		if !ok {
			result.SkippedAgents = append(result.SkippedAgents, name)
			result.warn("agent_not_found: %s", name)
			continue
		}
		c, err := s.AgentChat(name)
		if err != nil {
			result.SkippedAgents = append(result.SkippedAgents, name)
			result.warn("agent_not_found: %s", name)
			continue
		}
		restoreEntry(c, entry, agentCfg.SystemPrompt, opts)
	}

	// Phase 2 + 3: classify and restore delegation instances.
	for key, entry := range snap.DelegationInstances {
		caller, callee, ok := splitDelegationKey(key)
		if !ok {
			result.SkippedDelegations = append(result.SkippedDelegations, key)
			result.warn("malformed delegation key: %s", key)
			continue
		}
		calleeCfg, ok := cfg.Agents[callee]
		if !ok {
			result.SkippedDelegations = append(result.SkippedDelegations, key)
			result.warn("agent_not_found: %s", callee)
			continue
		}
		if caller != "*" {
			if _, ok := cfg.Agents[caller]; !ok {
				result.SkippedDelegations = append(result.SkippedDelegations, key)
				result.warn("agent_not_found: %s", caller)
				continue
			}
		}

		c, ok := s.Graph().Get(key)
		if !ok {
			built, err := buildDelegationChat(s, callee)
			if err != nil {
				result.SkippedDelegations = append(result.SkippedDelegations, key)
				result.warn("agent_not_found: %s", callee)
				continue
			}
			c = built
			s.Graph().Restore(key, c)
		}
		restoreEntry(c, entry, calleeCfg.SystemPrompt, opts)
	}

	// Restore shared scratchpad.
	padEntries := make(map[string]scratchpad.Entry, len(snap.Scratchpad))
	for k, e := range snap.Scratchpad {
		padEntries[k] = scratchpad.Entry{Value: e.Value, Agent: e.Agent, Timestamp: e.TS}
	}
	s.Scratchpad().Restore(padEntries)

	// Restore read-tracking.
	s.ReadTracker().Restore(snap.ReadTracking)

	return result, nil
}

// restoreEntry replaces c's message list with entry's historical
// conversation, prefixed by either the current or historical system
// prompt, then restores context-state bookkeeping.
func restoreEntry(c *chat.Chat, entry AgentEntry, currentSystemPrompt string, opts Options) {
	systemPrompt := currentSystemPrompt
	if opts.PreserveSystemPrompts {
		systemPrompt = entry.SystemPrompt
	}

	messages := make([]llms.Message, 0, len(entry.Conversation)+1)
	if systemPrompt != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: systemPrompt})
	}
	for _, m := range entry.Conversation {
		if m.Role == llms.RoleSystem {
			continue
		}
		messages = append(messages, fromWireMessage(m))
	}
	c.ReplaceMessages(messages)

	cs := c.ContextState()
	cs.CompressionApplied = entry.ContextState.CompressionApplied
	cs.LastTodowriteMessageIdx = entry.ContextState.LastTodowriteMessageIdx
	cs.ActiveSkillPath = entry.ContextState.ActiveSkillPath
	for k := range cs.WarningThresholdsHit {
		delete(cs.WarningThresholdsHit, k)
	}
	for _, idx := range entry.ContextState.WarningThresholdsHit {
		cs.WarningThresholdsHit[idx] = true
	}
}

// splitDelegationKey parses "<callee>@<caller>" into (caller, callee, ok).
func splitDelegationKey(key string) (caller, callee string, ok bool) {
	parts := strings.SplitN(key, "@", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[1], parts[0], true
}

// buildDelegationChat constructs a fresh Chat for callee the same way the
// delegation graph's factory would, for restoring a delegation instance the
// graph hasn't lazily created yet in this process.
func buildDelegationChat(s *swarm.Swarm, callee string) (*chat.Chat, error) {
	return s.NewAgentChat(callee)
}
