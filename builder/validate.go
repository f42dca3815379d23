package builder

import (
	"fmt"
	"os"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/delegation"
	"github.com/kestrelai/swarmkit/internal/swarmerr"
)

// ValidateOptions controls which construct-time checks Validate runs.
// CheckFilesystem can be disabled in tests that build configs against
// working directories that don't exist on the machine running the test.
type ValidateOptions struct {
	CheckFilesystem bool
}

// DefaultValidateOptions enables every check, matching spec.md §4.1's
// "Construct-time: validate definitions, topology, and filesystem-tool
// permissions."
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{CheckFilesystem: true}
}

// Validate runs the full construct-time validation pass: cfg's own
// structural Validate (provider/agent/workflow references), the
// delegation graph's topology check (self-edges, unknown callees), and —
// unless disabled — a filesystem pass confirming every agent's working
// directory exists and every tool permission's allowed-paths exist (they
// are not checked to lie under the working directory), per spec.md §3's
// "working directory (must exist)"
// and §4.1's filesystem-tool-permission validation.
//
// This is the single entry point builder.SwarmBuilder.Build uses, and the
// one cmd/swarmctl's `swarmctl init`/`swarmctl start` should call before
// constructing a swarm.Swarm from a loaded config.Config.
func Validate(cfg *config.Config, opts ValidateOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	delegatesTo := make(map[string][]string, len(cfg.Agents))
	for name, a := range cfg.Agents {
		delegatesTo[name] = a.DelegatesTo
	}
	if err := delegation.ValidateConfig(delegatesTo); err != nil {
		return err
	}

	if opts.CheckFilesystem {
		for name, a := range cfg.Agents {
			if err := checkFilesystem(name, a); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkFilesystem(agentName string, a config.AgentConfig) error {
	if a.WorkingDir == "" {
		return nil
	}
	info, err := os.Stat(a.WorkingDir)
	if err != nil {
		return swarmerr.New(swarmerr.KindConfiguration, "builder", "Validate",
			fmt.Sprintf("agent %q working directory %q does not exist", agentName, a.WorkingDir), err)
	}
	if !info.IsDir() {
		return swarmerr.New(swarmerr.KindConfiguration, "builder", "Validate",
			fmt.Sprintf("agent %q working directory %q is not a directory", agentName, a.WorkingDir), nil)
	}

	for _, t := range a.Tools {
		for _, allowed := range t.Permissions.AllowedPaths {
			if _, err := os.Stat(allowed); err != nil {
				return swarmerr.New(swarmerr.KindConfiguration, "builder", "Validate",
					fmt.Sprintf("agent %q tool %q allowed-path %q does not exist", agentName, t.Name, allowed), err)
			}
		}
	}
	return nil
}
