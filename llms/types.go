// Package llms defines the core-facing LLM provider contract (spec.md §6):
// the Message/ToolCall/ToolResult wire-neutral types the Agent Chat Engine
// exchanges with a Provider, and the stateful/stateless response-continuity
// bookkeeping described in §3 and the TTL/fallback rules in §8.
package llms

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrResponseNotFound is the sentinel a Provider adapter wraps its error in
// when the server reports that PreviousResponseID no longer exists (expired
// or evicted server-side). Only this specific failure counts toward
// ContinuityTracker's two-strikes disable (spec.md §8) — any other
// completion failure must not touch continuity state.
var ErrResponseNotFound = errors.New("llms: previous response not found")

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function-call request emitted by the provider inside an
// assistant Message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is the wire-neutral unit of conversation history exchanged
// between the chat engine and a Provider.
type Message struct {
	Role         Role
	Content      string
	ToolCalls    []ToolCall
	ToolCallID   string // set on tool-result messages
	InputTokens  int
	OutputTokens int
	ModelID      string
	ResponseID   string // stateful-provider continuity token
}

// ToolDefinition is the JSON-schema tool declaration passed to a Provider on
// every completion request.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// CompleteRequest is the argument bundle passed to Provider.Complete.
type CompleteRequest struct {
	Messages           []Message
	Tools              []ToolDefinition
	Temperature        *float64
	Model              string
	ReasoningEffort    string
	Headers            map[string]string
	Params             map[string]any
	PreviousResponseID string // set only when the provider is Stateful and a live token exists
}

// CompleteResponse is the provider's reply to a completion request.
type CompleteResponse struct {
	Role         Role
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
	ModelID      string
	ResponseID   string
}

// Provider is the core-facing LLM adapter contract (spec.md §6). A Provider
// is either stateless (chat-completion: full history each call) or
// Stateful() == true (responses API: supports PreviousResponseID).
type Provider interface {
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error)
	Stateful() bool
	Model() string
}

// ============================================================================
// RESPONSE CONTINUITY (stateful providers)
// ============================================================================

// responseIDTTL is the client-side guard against server-side retention
// expiry described in spec.md §3/§8 (Open Question ii: adjust per provider).
const responseIDTTL = 300 * time.Second

// ContinuityTracker holds the response-id/TTL/failure-counter state a
// stateful-provider Agent Chat Instance carries, per spec.md §3. It is
// disabled (falls back to stateless form) after two consecutive
// "not found" errors.
type ContinuityTracker struct {
	mu          sync.Mutex
	responseID  string
	setAt       time.Time
	failCount   int
	disabled    bool
}

// Record stores a fresh response id returned by the provider.
func (c *ContinuityTracker) Record(responseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if responseID == "" {
		return
	}
	c.responseID = responseID
	c.setAt = time.Now()
	c.failCount = 0
}

// PreviousResponseID returns the live response id to send on the next
// request, or "" if none is live (expired, never set, or disabled).
func (c *ContinuityTracker) PreviousResponseID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled || c.responseID == "" {
		return ""
	}
	if time.Since(c.setAt) > responseIDTTL {
		c.responseID = ""
		return ""
	}
	return c.responseID
}

// RecordNotFound registers a "response not found" failure from the
// provider; after two consecutive strikes continuity is disabled for the
// remainder of the session.
func (c *ContinuityTracker) RecordNotFound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCount++
	c.responseID = ""
	if c.failCount >= 2 {
		c.disabled = true
	}
}

// Disabled reports whether continuity has been permanently turned off.
func (c *ContinuityTracker) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}
