package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/kestrelai/swarmkit/config"
)

// NodeContext is the JSON document a shell transformer receives on stdin,
// per spec.md §4.4 step 3 / §6's transformer shell protocol.
type NodeContext struct {
	Event          string            `json:"event"` // "input" or "output"
	Node           string            `json:"node"`
	OriginalPrompt string            `json:"original_prompt"`
	Content        string            `json:"content"`
	AllResults     map[string]string `json:"all_results"`
	Dependencies   []string          `json:"dependencies"`
}

// controlOutcome names which of the three mutually-exclusive control
// dictionary keys a transformer result set, if any.
type controlOutcome int

const (
	outcomeContinue controlOutcome = iota
	outcomeSkip
	outcomeHalt
	outcomeGoto
)

// transformResult is the normalized outcome of running one transformer,
// whether it came from a callable, a shell exit code, or a parsed JSON
// control dictionary.
type transformResult struct {
	outcome  controlOutcome
	content  string
	gotoNode string
}

// controlDict mirrors the JSON control dictionary a transformer may write
// to stdout instead of plain replacement text: exactly one of
// SkipExecution/HaltWorkflow/GotoNode set, plus Content.
type controlDict struct {
	SkipExecution bool   `json:"skip_execution,omitempty"`
	HaltWorkflow  bool   `json:"halt_workflow,omitempty"`
	GotoNode      string `json:"goto_node,omitempty"`
	Content       string `json:"content"`
}

// runTransformer executes cfg (a no-op pass-through if cfg.Command is
// empty) against nc and returns the normalized outcome.
func runTransformer(ctx context.Context, cfg config.TransformerConfig, nc NodeContext) (transformResult, error) {
	if cfg.Command == "" {
		return transformResult{outcome: outcomeContinue, content: nc.Content}, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(nc)
	if err != nil {
		return transformResult{}, err
	}

	cmd := exec.CommandContext(cctx, "/bin/sh", "-c", cfg.Command)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		return transformResult{outcome: outcomeHalt, content: "timeout"}, nil
	}

	exitCode, ok := exitCodeOf(runErr)
	if !ok {
		return transformResult{}, runErr
	}

	switch exitCode {
	case 0:
		return parseTransformerOutput(stdout.String(), nc.Content), nil
	case 1:
		return transformResult{outcome: outcomeContinue, content: nc.Content}, nil
	case 2:
		return transformResult{outcome: outcomeHalt, content: strings.TrimSpace(stderr.String())}, nil
	default:
		return transformResult{outcome: outcomeContinue, content: nc.Content}, nil
	}
}

func parseTransformerOutput(stdout, fallback string) transformResult {
	trimmed := strings.TrimSpace(stdout)
	var dict controlDict
	if trimmed != "" && json.Unmarshal([]byte(trimmed), &dict) == nil {
		switch {
		case dict.HaltWorkflow:
			return transformResult{outcome: outcomeHalt, content: dict.Content}
		case dict.GotoNode != "":
			return transformResult{outcome: outcomeGoto, content: dict.Content, gotoNode: dict.GotoNode}
		case dict.SkipExecution:
			return transformResult{outcome: outcomeSkip, content: dict.Content}
		}
		if dict.Content != "" {
			return transformResult{outcome: outcomeContinue, content: dict.Content}
		}
	}
	if trimmed == "" {
		return transformResult{outcome: outcomeContinue, content: fallback}
	}
	return transformResult{outcome: outcomeContinue, content: trimmed}
}

func exitCodeOf(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
