package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Recorder records the metrics this module cares about: tool executions,
// LLM round-trips, context-window compaction, and hook dispatch. Grounded
// on the teacher's pkg/observability/recorder.go Metrics interface shape
// (RecordToolExecution/RecordLLMCall et al.) but backed by real OTel
// metric-API instruments bridged to Prometheus, where the teacher's
// recorder.go declares the same instrument types (metric.Float64Histogram,
// metric.Int64Counter) without ever wiring a provider behind them.
type Recorder struct {
	registry *promclient.Registry
	meter    metric.Meter

	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter
	toolDuration metric.Float64Histogram

	llmCalls        metric.Int64Counter
	llmErrors       metric.Int64Counter
	llmDuration     metric.Float64Histogram
	llmTokensInput  metric.Int64Counter
	llmTokensOutput metric.Int64Counter

	contextCompactions metric.Int64Counter
	contextTokensFreed metric.Int64Counter

	hookCalls    metric.Int64Counter
	hookDuration metric.Float64Histogram
}

// NewRecorder builds a Recorder wired to a fresh, private Prometheus
// registry (so a caller can mount several independent Recorders, the way
// the teacher's NewMetrics builds its own prometheus.NewRegistry() rather
// than touching the global one). Returns nil, nil if cfg is nil or
// disabled, mirroring the teacher's nil-tolerant NewMetrics.
func NewRecorder(cfg *Config) (*Recorder, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(
		prometheus.WithNamespace(cfg.Namespace),
		prometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: building prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/kestrelai/swarmkit")

	r := &Recorder{registry: registry, meter: meter}
	if err := r.initInstruments(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initInstruments() error {
	var err error
	m := r.meter

	if r.toolCalls, err = m.Int64Counter("tool_calls_total", metric.WithDescription("tool invocations")); err != nil {
		return err
	}
	if r.toolErrors, err = m.Int64Counter("tool_errors_total", metric.WithDescription("failed tool invocations")); err != nil {
		return err
	}
	if r.toolDuration, err = m.Float64Histogram("tool_call_duration_seconds",
		metric.WithDescription("tool execution latency"), metric.WithUnit("s")); err != nil {
		return err
	}

	if r.llmCalls, err = m.Int64Counter("llm_calls_total", metric.WithDescription("LLM round-trips")); err != nil {
		return err
	}
	if r.llmErrors, err = m.Int64Counter("llm_errors_total", metric.WithDescription("failed LLM round-trips")); err != nil {
		return err
	}
	if r.llmDuration, err = m.Float64Histogram("llm_call_duration_seconds",
		metric.WithDescription("LLM round-trip latency"), metric.WithUnit("s")); err != nil {
		return err
	}
	if r.llmTokensInput, err = m.Int64Counter("llm_tokens_input_total", metric.WithDescription("prompt tokens sent")); err != nil {
		return err
	}
	if r.llmTokensOutput, err = m.Int64Counter("llm_tokens_output_total", metric.WithDescription("completion tokens received")); err != nil {
		return err
	}

	if r.contextCompactions, err = m.Int64Counter("context_compactions_total",
		metric.WithDescription("scratchpad/context-window compaction passes")); err != nil {
		return err
	}
	if r.contextTokensFreed, err = m.Int64Counter("context_tokens_freed_total",
		metric.WithDescription("tokens reclaimed by compaction")); err != nil {
		return err
	}

	if r.hookCalls, err = m.Int64Counter("hook_calls_total", metric.WithDescription("hook dispatches")); err != nil {
		return err
	}
	if r.hookDuration, err = m.Float64Histogram("hook_duration_seconds",
		metric.WithDescription("hook execution latency"), metric.WithUnit("s")); err != nil {
		return err
	}
	return nil
}

// RecordToolExecution records one tool invocation's outcome and latency.
func (r *Recorder) RecordToolExecution(ctx context.Context, tool string, seconds float64, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	r.toolCalls.Add(ctx, 1, attrs)
	r.toolDuration.Record(ctx, seconds, attrs)
	if err != nil {
		r.toolErrors.Add(ctx, 1, attrs)
	}
}

// RecordLLMCall records one LLM round-trip's latency, token usage, and
// outcome.
func (r *Recorder) RecordLLMCall(ctx context.Context, provider, model string, seconds float64, inputTokens, outputTokens int64, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("provider", provider), attribute.String("model", model))
	r.llmCalls.Add(ctx, 1, attrs)
	r.llmDuration.Record(ctx, seconds, attrs)
	r.llmTokensInput.Add(ctx, inputTokens, attrs)
	r.llmTokensOutput.Add(ctx, outputTokens, attrs)
	if err != nil {
		r.llmErrors.Add(ctx, 1, attrs)
	}
}

// RecordContextCompaction records a scratchpad compaction pass and how
// many tokens it freed.
func (r *Recorder) RecordContextCompaction(ctx context.Context, agent string, tokensFreed int64) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agent))
	r.contextCompactions.Add(ctx, 1, attrs)
	r.contextTokensFreed.Add(ctx, tokensFreed, attrs)
}

// RecordHookDispatch records one hook's execution latency.
func (r *Recorder) RecordHookDispatch(ctx context.Context, event string, seconds float64) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event", event))
	r.hookCalls.Add(ctx, 1, attrs)
	r.hookDuration.Record(ctx, seconds, attrs)
}
