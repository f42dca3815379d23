package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelai/swarmkit/builder"
	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/observability"
	"github.com/kestrelai/swarmkit/plugin"
	"github.com/kestrelai/swarmkit/swarm"
	"github.com/kestrelai/swarmkit/tools"
)

// defaultSwarmDir is the SWARM_HOME leaf directory name when neither
// --root-dir nor $SWARM_HOME is set, matching spec.md §6's "default
// ~/.<app>".
const defaultSwarmDir = ".swarmkit"

// swarmHome resolves the base directory for sessions/worktrees: --root-dir
// flag, then $SWARM_HOME, then ~/.swarmkit.
func swarmHome(rootDir string) (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	if env := os.Getenv("SWARM_HOME"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving SWARM_HOME: %w", err)
	}
	return filepath.Join(home, defaultSwarmDir), nil
}

func sessionsDir(home string) string { return filepath.Join(home, "sessions") }

func sessionDir(home, id string) string { return filepath.Join(sessionsDir(home), id) }

// sessionMeta is this CLI's own minimal session record — spec.md doesn't
// define its shape (sessions are a CLI-surface concern, an external
// collaborator per spec.md §1), so this mirrors just enough of the
// teacher's task/session bookkeeping (status, timestamps, config
// provenance) to back ps/show/list-sessions/clean.
type sessionMeta struct {
	ID         string    `json:"id"`
	ConfigPath string    `json:"config_path"`
	SwarmName  string    `json:"swarm_name"`
	Prompt     string    `json:"prompt,omitempty"`
	Status     string    `json:"status"` // running, completed, failed
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func loadSessionMeta(home, id string) (*sessionMeta, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir(home, id), "meta.json"))
	if err != nil {
		return nil, err
	}
	var m sessionMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing session metadata for %q: %w", id, err)
	}
	return &m, nil
}

func saveSessionMeta(home string, m *sessionMeta) error {
	dir := sessionDir(home, m.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o644)
}

func listSessionIDs(home string) ([]string, error) {
	entries, err := os.ReadDir(sessionsDir(home))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func newSessionID() string { return uuid.NewString() }

// loadAndValidate loads cfg from path and runs the full construct-time
// validation pass (structural + delegation topology + filesystem tool
// permissions), per spec.md §4.1.
func loadAndValidate(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := builder.Validate(cfg, builder.DefaultValidateOptions()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newProviderRegistry builds an llms.Registry seeded with the built-in
// "openai" factory (registered by llms.NewRegistry itself); additional
// provider types are an external collaborator's concern per spec.md §6.
func newProviderRegistry() *llms.Registry {
	return llms.NewRegistry()
}

// newToolRegistry builds a tools.Registry seeded with the reference
// built-in tool bodies this module carries (bash, read_file, edit_file),
// per SPEC_FULL.md's scoped-down tool-body commitment.
func newToolRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	_ = reg.Register("bash", tools.SourceBuiltin, tools.BashFactory())
	_ = reg.Register("read_file", tools.SourceBuiltin, tools.ReadFactory())
	_ = reg.Register("edit_file", tools.SourceBuiltin, tools.EditFactory())
	return reg
}

// newPluginManager builds a plugin.Manager seeded with the reference
// MemoryPlugin, so a config's agents.*.plugin_tools can reference "memory"
// without the CLI needing a separate plugin-discovery mechanism.
func newPluginManager() *plugin.Manager {
	mgr := plugin.NewManager()
	_ = mgr.Register(plugin.NewMemoryPlugin())
	return mgr
}

// buildSwarm loads, validates, and constructs a ready-to-run swarm.Swarm
// from a config file path, wiring a fresh LogStream every caller can
// subscribe to before Execute runs. A nil metrics builds a swarm with
// metrics recording disabled (every Recorder.Record* call becomes a no-op).
func buildSwarm(path string, metrics *observability.Manager) (*swarm.Swarm, *config.Config, *logstream.LogStream, error) {
	cfg, err := loadAndValidate(path)
	if err != nil {
		return nil, nil, nil, err
	}

	var recorder *observability.Recorder
	if metrics != nil {
		recorder = metrics.Recorder()
	}

	stream := logstream.New(nil)
	s, err := swarm.New(swarm.Config{
		Name:      cfg.Name,
		Cfg:       cfg,
		Providers: newProviderRegistry(),
		Tools:     newToolRegistry(),
		Stream:    stream,
		Recorder:  recorder,
		Plugins:   newPluginManager(),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return s, cfg, stream, nil
}
