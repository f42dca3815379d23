package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager is the nil-tolerant entry point the rest of the module wires
// into: construct one from a Config, pass it (or its Recorder) to
// whatever records metrics, and mount Handler() on an HTTP mux. Grounded
// on the teacher's pkg/observability/manager.go Manager/NewManager
// pairing, trimmed to the metrics-only scope this package covers.
type Manager struct {
	config   *Config
	recorder *Recorder
}

// NewManager builds a Manager. A nil or disabled cfg yields a Manager
// whose Recorder is nil — every Record* method on a nil Recorder is a
// no-op, so callers never need to branch on whether metrics are enabled.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()

	recorder, err := NewRecorder(cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	return &Manager{config: cfg, recorder: recorder}, nil
}

// MustNewManager builds a Manager or panics.
func MustNewManager(cfg *Config) *Manager {
	m, err := NewManager(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// Recorder returns the metrics recorder. Safe to call on any Manager;
// the returned *Recorder may be nil if metrics are disabled.
func (m *Manager) Recorder() *Recorder {
	if m == nil {
		return nil
	}
	return m.recorder
}

// Enabled reports whether metrics collection is active.
func (m *Manager) Enabled() bool {
	return m != nil && m.recorder != nil
}

// MetricsPath returns the configured scrape path.
func (m *Manager) MetricsPath() string {
	if m == nil || m.config == nil {
		return "/metrics"
	}
	return m.config.MetricsPath
}

// Handler returns the Prometheus scrape handler for this Manager's
// private registry, or nil if metrics are disabled. Mount it at
// MetricsPath().
func (m *Manager) Handler() http.Handler {
	if m == nil || m.recorder == nil {
		return nil
	}
	return promhttp.HandlerFor(m.recorder.registry, promhttp.HandlerOpts{})
}

// Shutdown tears down the manager. Prometheus's pull model needs no
// explicit shutdown step, matching the teacher's own manager.go comment
// ("Metrics don't need explicit shutdown in Prometheus") — kept here as
// a no-op so callers can defer m.Shutdown() uniformly regardless of
// which observability backend is behind Manager.
func (m *Manager) Shutdown() error {
	return nil
}
