package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrelai/swarmkit/internal/swarmerr"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/tools"
)

// runLoop implements the five-step LLM/tool loop from spec.md §4.1. A tool
// result's Halt flag short-circuits the loop with its Content as the reply
// (spec.md §9's tagged Result variant, represented here as a plain return
// rather than an exception).
func (c *Chat) runLoop(ctx context.Context) (llms.Message, error) {
	for iteration := 0; iteration < c.cfg.MaxIterations; iteration++ {
		assistantMsg, err := c.callLLM(ctx)
		if err != nil {
			return llms.Message{}, err
		}

		c.appendMessage(assistantMsg)
		c.emit(Event{Type: EventEndMessage, Message: &assistantMsg})

		if err := c.accountContextWindow(assistantMsg); err != nil {
			return llms.Message{}, err
		}

		if len(assistantMsg.ToolCalls) == 0 {
			return assistantMsg, nil
		}

		haltContent, anyNonHalt, err := c.executeToolCalls(ctx, assistantMsg.ToolCalls)
		if err != nil {
			return llms.Message{}, err
		}
		if haltContent != nil {
			return llms.Message{Role: llms.RoleAssistant, Content: *haltContent}, nil
		}
		if !anyNonHalt {
			// every tool call produced no further work (shouldn't normally
			// happen since non-halt results always recurse per spec.md
			// §4.1 step 5), but guard against an infinite loop anyway.
			return assistantMsg, nil
		}
	}
	return llms.Message{}, swarmerr.New(swarmerr.KindTurnTimeout, "Chat", "runLoop",
		fmt.Sprintf("exceeded max iterations (%d) for agent %s", c.cfg.MaxIterations, c.cfg.AgentName), nil)
}

// callLLM builds the provider request from current history and invokes the
// around_llm_request wrapper if installed.
func (c *Chat) callLLM(ctx context.Context) (llms.Message, error) {
	req := llms.CompleteRequest{
		Messages: c.snapshotMessages(),
		Model:    c.cfg.Provider.Model(),
	}
	if c.cfg.Provider.Stateful() {
		req.PreviousResponseID = c.continuity.PreviousResponseID()
	}
	for _, name := range c.cfg.ToolNames {
		req.Tools = append(req.Tools, llms.ToolDefinition{Name: name})
	}

	execute := func(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
		return c.cfg.Provider.Complete(ctx, req)
	}

	var resp *llms.CompleteResponse
	var err error
	if c.aroundLLM != nil {
		resp, err = c.aroundLLM(ctx, req, execute)
	} else {
		resp, err = execute(ctx, req)
	}
	if err != nil {
		c.maybeRecordNotFound(err)
		return llms.Message{}, swarmerr.New(swarmerr.KindLLM, "Chat", "callLLM", "provider call failed", err)
	}

	c.continuity.Record(resp.ResponseID)
	return llms.Message{
		Role:         llms.RoleAssistant,
		Content:      resp.Content,
		ToolCalls:    resp.ToolCalls,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		ModelID:      resp.ModelID,
		ResponseID:   resp.ResponseID,
	}, nil
}

func (c *Chat) maybeRecordNotFound(err error) {
	// Only a distinguishable "previous response not found" failure counts
	// toward the two-strikes disable in spec.md §8 — an unrelated failure
	// (retry-exhausted 5xx, malformed JSON, ...) must not erode continuity.
	if c.cfg.Provider.Stateful() && errors.Is(err, llms.ErrResponseNotFound) {
		c.continuity.RecordNotFound()
	}
}

// executeToolCalls runs every call via the configured concurrency strategy,
// appends one tool-result message per call in original request order, and
// reports whether any halt sentinel was produced (first-in-order wins).
func (c *Chat) executeToolCalls(ctx context.Context, calls []llms.ToolCall) (haltContent *string, anyNonHalt bool, err error) {
	for _, call := range calls {
		c.emit(Event{Type: EventNewMessage})
		c.emit(Event{Type: EventToolCall, Call: &call})
	}

	results, err := c.runConcurrencyStrategy(ctx, calls)
	if err != nil {
		return nil, false, err
	}

	for i, call := range calls {
		result := results[i]
		c.emit(Event{Type: EventToolResult, Call: &call, Result: &result})

		if result.Halt && haltContent == nil {
			content := result.Content
			haltContent = &content
		}
		if !result.Halt {
			anyNonHalt = true
		}

		toolMsg := llms.Message{
			Role:       llms.RoleTool,
			Content:    toolResultContent(result),
			ToolCallID: call.ID,
		}
		c.appendMessage(toolMsg)
		c.emit(Event{Type: EventEndMessage, Message: &toolMsg})
	}

	if haltContent != nil {
		return haltContent, anyNonHalt, nil
	}
	return nil, anyNonHalt, nil
}

func toolResultContent(r tools.ToolResult) string {
	if r.Error != "" {
		return fmt.Sprintf("Error: tool_execution: %s", r.Error)
	}
	return r.Content
}

// accountContextWindow computes remaining budget after assistantMsg and
// emits a context_warning event the first time each configured threshold is
// crossed, per spec.md §4.1.
func (c *Chat) accountContextWindow(assistantMsg llms.Message) error {
	if c.cfg.ContextWindow <= 0 {
		return nil
	}

	used := 0
	for _, m := range c.snapshotMessages() {
		if m.InputTokens == 0 && m.OutputTokens == 0 {
			// User/tool-result messages carry no provider-reported token
			// counts; count them for real so they still contribute to the
			// budget accurately instead of silently counting as zero.
			used += c.tokens.Count(m.Content)
			continue
		}
		used += m.InputTokens + m.OutputTokens
	}
	fraction := float64(used) / float64(c.cfg.ContextWindow)

	for i, threshold := range c.cfg.Thresholds {
		if fraction >= threshold && !c.contextState.WarningThresholdsHit[i] {
			c.contextState.WarningThresholdsHit[i] = true
			c.emit(Event{Type: EventContextWarning})
		}
	}

	if c.cfg.Compactor != nil && fraction >= 0.95 {
		compacted, err := c.cfg.Compactor.Compact(c.snapshotMessages())
		if err == nil {
			c.ReplaceMessages(compacted)
			c.contextState.CompressionApplied = true
			c.contextState.WarningThresholdsHit = make(map[int]bool)
		}
	}
	return nil
}
