package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

// blockedBashPatterns are the built-in safety patterns spec.md §3/§8
// requires: matches are refused before a subprocess is ever spawned, and
// this set may not be overridden by configuration.
var blockedBashPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`rm\s+-rf\s+/\*`),
	regexp.MustCompile(`rm\s+-rf\s+~`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}\s*;`), // fork bomb
	regexp.MustCompile(`mkfs\.`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`dd\s+if=.*of=/dev/`),
}

// BashTool executes shell commands, refusing anything matching
// blockedBashPatterns with a user-visible, non-overridable message.
type BashTool struct {
	workingDir string
	timeout    time.Duration
}

// NewBashTool constructs a BashTool rooted at workingDir. timeout defaults
// to 120s (spec.md §5) if zero; it is the caller's responsibility to clamp
// against the 600s maximum.
func NewBashTool(workingDir string, timeout time.Duration) *BashTool {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &BashTool{workingDir: workingDir, timeout: timeout}
}

// BashFactory is the Registry entry for "bash".
func BashFactory() Factory {
	return Factory{
		Requirements: []Requirement{RequireDirectory},
		Build: func(ctx Context) (Tool, error) {
			return NewBashTool(ctx.Directory, 120*time.Second), nil
		},
	}
}

func (t *BashTool) Name() string        { return "bash" }
func (t *BashTool) Description() string { return "Execute a shell command." }
func (t *BashTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string"},
		},
		"required": []string{"command"},
	}
}

// Execute runs the command, first rejecting any blocked pattern match.
func (t *BashTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return ToolResult{Error: "command parameter is required"}, nil
	}

	if blocked, pattern := matchesBlockedPattern(command); blocked {
		return ToolResult{
			Error: fmt.Sprintf("SECURITY BLOCK: command matches blocked pattern %q and was not executed", pattern),
		}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = t.workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return ToolResult{Error: "command timed out"}, nil
		}
		return ToolResult{Error: fmt.Sprintf("exec error: %s: %s", err, stderr.String())}, nil
	}

	return ToolResult{Content: stdout.String()}, nil
}

// matchesBlockedPattern reports whether command matches any blocked-pattern
// regex, and returns the first matching pattern's source for the error
// message.
func matchesBlockedPattern(command string) (bool, string) {
	for _, re := range blockedBashPatterns {
		if re.MatchString(command) {
			return true, re.String()
		}
	}
	return false, ""
}
