// Package hook implements the Hook Dispatcher (spec.md §4.6): callable or
// shell handlers bound to lifecycle events, fired FIFO per event, with the
// shell stdin-JSON/exit-code protocol from spec.md §6.
//
// Grounded on the teacher's plugins/registry.go handler-registration shape
// and pkg/checkpoint's event-driven-hook idea; the shell-out exit-code
// convention is new (no direct teacher analog) and follows spec.md §4.6/§6
// literally.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"time"

	"github.com/kestrelai/swarmkit/config"
)

// Outcome is the result of running one hook.
type Outcome int

const (
	// Continue lets the turn proceed unchanged.
	Continue Outcome = iota
	// Halt stops the turn/operation with Message as the reason.
	Halt
	// Replace substitutes Message for the value under evaluation (e.g. the
	// user prompt on a user_prompt hook).
	Replace
)

// Result is what a callable Handler, or a shell hook's exit code, produces.
type Result struct {
	Outcome Outcome
	Message string
}

// Handler is a callable hook implementation.
type Handler func(ctx context.Context, payload Payload) (Result, error)

// Payload is the JSON document a hook (callable or shell) receives,
// matching spec.md §6's stdin shape.
type Payload struct {
	Event      config.HookEvent `json:"event"`
	Agent      string           `json:"agent"`
	Swarm      string           `json:"swarm"`
	Tool       string           `json:"tool,omitempty"`
	Parameters map[string]any   `json:"parameters,omitempty"`
}

type binding struct {
	order   int
	matcher *regexp.Regexp
	cfg     config.HookConfig
	handler Handler // nil for shell-backed hooks
}

// Dispatcher fires hooks bound to events, in FIFO registration order.
type Dispatcher struct {
	projectDir string
	swarmName  string
	bindings   map[config.HookEvent][]*binding
	seq        int
}

// New constructs a Dispatcher. projectDir and swarmName populate the
// SWARM_PROJECT_DIR / SWARM_SWARM_NAME environment variables passed to shell
// hooks.
func New(projectDir, swarmName string) *Dispatcher {
	return &Dispatcher{
		projectDir: projectDir,
		swarmName:  swarmName,
		bindings:   make(map[config.HookEvent][]*binding),
	}
}

// RegisterShell binds a shell-out hook described by cfg.
func (d *Dispatcher) RegisterShell(cfg config.HookConfig) error {
	return d.register(cfg, nil)
}

// RegisterCallable binds an in-process Handler to event, with an optional
// tool-name matcher (pre/post tool events only).
func (d *Dispatcher) RegisterCallable(event config.HookEvent, matcher string, handler Handler) error {
	return d.register(config.HookConfig{Event: event, Matcher: matcher}, handler)
}

func (d *Dispatcher) register(cfg config.HookConfig, handler Handler) error {
	var re *regexp.Regexp
	if cfg.Matcher != "" {
		compiled, err := regexp.Compile(cfg.Matcher)
		if err != nil {
			return fmt.Errorf("hook: invalid matcher %q: %w", cfg.Matcher, err)
		}
		re = compiled
	}
	d.seq++
	d.bindings[cfg.Event] = append(d.bindings[cfg.Event], &binding{
		order: d.seq, matcher: re, cfg: cfg, handler: handler,
	})
	return nil
}

// Fire runs every hook bound to event whose matcher (if any) matches
// toolName, in FIFO order. It stops at the first Halt and returns that
// Result. If no hook halts or replaces, it returns {Continue, ""}.
//
// A hook's own failure (shell exit != 0/2, or a callable returning an
// error) is treated as Continue, never failing the whole turn, per
// spec.md §4.6. The Dispatcher does not log these failures.
func (d *Dispatcher) Fire(ctx context.Context, event config.HookEvent, toolName string, payload Payload) Result {
	bindings := append([]*binding(nil), d.bindings[event]...)
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].order < bindings[j].order })

	final := Result{Outcome: Continue}
	for _, b := range bindings {
		if b.matcher != nil && !b.matcher.MatchString(toolName) {
			continue
		}

		var (
			result Result
			err    error
		)
		if b.handler != nil {
			result, err = b.handler(ctx, payload)
		} else {
			result, err = d.runShell(ctx, b.cfg, payload)
		}
		if err != nil {
			continue // failure = continue
		}

		switch result.Outcome {
		case Halt:
			return result
		case Replace:
			final = result
			payload.Parameters = mergeReplaced(payload.Parameters, result.Message)
		}
	}
	return final
}

func mergeReplaced(params map[string]any, replaced string) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	params["_replaced"] = replaced
	return params
}

func (d *Dispatcher) runShell(ctx context.Context, cfg config.HookConfig, payload Payload) (Result, error) {
	stdin, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("hook: marshal payload: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", cfg.Command)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = []string{
		"SWARM_PROJECT_DIR=" + d.projectDir,
		"SWARM_AGENT_NAME=" + payload.Agent,
		"SWARM_SWARM_NAME=" + d.swarmName,
		"PATH=" + os.Getenv("PATH"),
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() != nil {
		return Result{Outcome: Continue}, nil // timeout = continue
	}

	exitCode := 0
	if exitErr, ok := asExitError(runErr); ok {
		exitCode = exitErr
	} else if runErr != nil {
		return Result{Outcome: Continue}, nil
	}

	switch exitCode {
	case 0:
		if cfg.Event == config.HookUserPrompt || cfg.Event == config.HookSessionStart {
			return Result{Outcome: Replace, Message: stdout.String()}, nil
		}
		return Result{Outcome: Continue}, nil
	case 2:
		return Result{Outcome: Halt, Message: stderr.String()}, nil
	default:
		return Result{Outcome: Continue}, nil
	}
}

func asExitError(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	type exitCoder interface{ ExitCode() int }
	if ee, ok := err.(exitCoder); ok {
		return ee.ExitCode(), true
	}
	return 0, false
}
