// Package observability implements the ambient OTel/Prometheus metrics
// wiring spec.md's ERROR HANDLING and CONCURRENCY sections assume exists
// around tool calls, LLM round-trips, context-window compression
// thresholds, and hook execution, without the spec itself naming a
// dedicated module for it (it is ambient infrastructure, not a
// spec-named component, the same way the teacher's pkg/observability
// is infrastructure its agent/tool/LLM layers call into rather than a
// user-facing feature).
//
// Grounded on the teacher's pkg/observability/manager.go (Manager
// lifecycle, NewFromConfig/MustNewManager nil-tolerant factory pattern)
// and pkg/observability/config.go (Config/MetricsConfig shape,
// SetDefaults/Validate per-field). Metrics are wired through OTel's
// metrics API (go.opentelemetry.io/otel/metric) bridged to a Prometheus
// scrape endpoint via go.opentelemetry.io/otel/exporters/prometheus —
// distinct from the teacher's pkg/observability/metrics.go, which talks
// to prometheus/client_golang directly. Distributed tracing
// (pkg/observability/tracer.go's OTLP exporter) is out of scope here: it
// needs a concrete trace exporter (otlptracegrpc/stdouttrace) this
// module's dependency set never wired in, so only the metrics half of
// the teacher's two-pillar observability stack is carried forward; see
// DESIGN.md for the open-question decision.
package observability

import "fmt"

// Config configures the metrics half of the observability stack.
type Config struct {
	// Enabled turns on metrics collection. Default: false.
	Enabled bool `yaml:"enabled,omitempty"`

	// Namespace prefixes every metric name (Prometheus convention).
	// Default: "swarmkit".
	Namespace string `yaml:"namespace,omitempty"`

	// MetricsPath is the path the HTTP handler is mounted on by callers.
	// Default: "/metrics".
	MetricsPath string `yaml:"metrics_path,omitempty"`
}

// Validate implements the same Validate()/SetDefaults() pairing every
// config type in this module follows.
func (c *Config) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return fmt.Errorf("observability: namespace is required when enabled")
	}
	return nil
}

// SetDefaults fills in zero values.
func (c *Config) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "swarmkit"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
}
