package utils

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ============================================================================
// TOKEN COUNTING - ACCURATE IMPLEMENTATION
// ============================================================================

// TokenCounter gives per-model token counts for context-window accounting
// (spec.md §4.1), backed by the real BPE encodings tiktoken-go ships.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	// Cache encodings to avoid repeated initialization.
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter builds a counter for model, falling back to cl100k_base
// when the model has no registered encoding, and to a nil encoding (Count
// then estimates via EstimateTokens) when neither can be resolved at all —
// e.g. no network path to fetch BPE ranks. Unlike the teacher's version this
// never errors: a counter that can't get an accurate encoding still has to
// produce a number for the context-window budget, so the degraded case is
// represented in the return value rather than forcing every call site to
// handle construction failure.
func NewTokenCounter(model string) *TokenCounter {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached, model: model}
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return &TokenCounter{model: model}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()
	return &TokenCounter{encoding: encoding, model: model}
}

// Count returns the token count for text, falling back to EstimateTokens
// when no encoding could be resolved.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Model returns the model name this counter is configured for.
func (tc *TokenCounter) Model() string {
	if tc == nil {
		return ""
	}
	return tc.model
}

// ============================================================================
// LAST-RESORT FALLBACK
// ============================================================================

// EstimateTokens provides a rough token estimation (4 characters per
// token). It exists only as TokenCounter.Count's fallback for text no
// encoding is available for; callers accounting for context-window budget
// should go through a TokenCounter, not call this directly.
func EstimateTokens(text string) int {
	return len(text) / 4
}
