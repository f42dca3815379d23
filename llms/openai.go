package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/llms/retry"
)

// OpenAIProvider is the one reference LLM adapter this module ships: a
// chat-completions-shaped HTTP client implementing the Provider interface,
// wired to the shared retry.Policy. Additional providers (Anthropic,
// Ollama, ...) are external collaborators that implement the same
// interface; their wire protocols are out of scope here.
type OpenAIProvider struct {
	cfg        config.LLMProviderConfig
	httpClient *http.Client
	retry      retry.Policy
}

// NewOpenAIProvider builds a provider bound to cfg.
func NewOpenAIProvider(cfg config.LLMProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      retry.Default(),
	}
}

func (p *OpenAIProvider) Stateful() bool { return p.cfg.Stateful }
func (p *OpenAIProvider) Model() string  { return p.cfg.Model }

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model              string          `json:"model"`
	Messages           []openAIMessage `json:"messages"`
	Temperature        *float64        `json:"temperature,omitempty"`
	Tools              []openAITool    `json:"tools,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error) {
	body := openAIRequest{
		Model:              req.Model,
		Temperature:        req.Temperature,
		PreviousResponseID: req.PreviousResponseID,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toWireMessage(m))
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name: t.Name, Description: t.Description, Parameters: t.Parameters,
			},
		})
	}

	var out *CompleteResponse
	err := retry.Do(ctx, p.retry, func() error {
		resp, callErr := p.call(ctx, body, req.Headers)
		if callErr != nil {
			return callErr
		}
		out = resp
		return nil
	})
	return out, err
}

func (p *OpenAIProvider) call(ctx context.Context, body openAIRequest, headers map[string]string) (*CompleteResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llms: marshal request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llms: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retry.RetryableError{Message: "llms: request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llms: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		httpErr := &retry.RetryableError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("llms: http %d: %s", resp.StatusCode, string(raw)),
			RetryAfter: retryAfter,
		}
		if resp.StatusCode == http.StatusNotFound && body.PreviousResponseID != "" {
			return nil, fmt.Errorf("%w: %w", ErrResponseNotFound, httpErr)
		}
		return nil, httpErr
	}

	var wire openAIResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("llms: decode response: %w", err)
	}
	if wire.Error != nil {
		return nil, fmt.Errorf("llms: provider error: %s", wire.Error.Message)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("llms: empty choices in response")
	}

	choice := wire.Choices[0]
	out := &CompleteResponse{
		Role:         RoleAssistant,
		Content:      choice.Message.Content,
		InputTokens:  wire.Usage.PromptTokens,
		OutputTokens: wire.Usage.CompletionTokens,
		ModelID:      p.cfg.Model,
		ResponseID:   wire.ID,
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

func toWireMessage(m Message) openAIMessage {
	out := openAIMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		out.ToolCalls = append(out.ToolCalls, openAIToolCall{
			ID: tc.ID, Type: "function",
			Function: openAIFunctionCall{Name: tc.Name, Arguments: string(args)},
		})
	}
	return out
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return 0
}
