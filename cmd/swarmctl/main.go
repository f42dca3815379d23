// Command swarmctl is the CLI front end for swarmkit: it loads a
// declarative config, validates it, and drives the lifecycle commands
// spec.md §6 names (start/init/generate/ps/show/list-sessions/watch/
// clean/restore/version).
//
// Grounded on the teacher's cmd/hector/main.go: a kong.CLI struct of
// `<Name>Cmd` types each with a `Run(cli *CLI) error` method, top-level
// --config/--log-level flags, and a slog logger initialized before
// kong.Parse's command dispatch runs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface's top-level flags and the
// command surface spec.md §6 calls "CLI surface (minimum)".
type CLI struct {
	Start       StartCmd       `cmd:"" help:"Run a swarm against a prompt."`
	Workflow    WorkflowCmd    `cmd:"" help:"Run a workflow's nodes against a prompt."`
	Init        InitCmd        `cmd:"" help:"Scaffold a minimal config file."`
	Generate    GenerateCmd    `cmd:"" help:"Generate a JSON Schema for the config format."`
	PS          PSCmd          `cmd:"" name:"ps" help:"List active sessions."`
	Show        ShowCmd        `cmd:"" help:"Show a session's recorded snapshot."`
	ListSess    ListSessionsCmd `cmd:"" name:"list-sessions" help:"List all known sessions."`
	Watch       WatchCmd       `cmd:"" help:"Tail a session's log stream."`
	Clean       CleanCmd       `cmd:"" help:"Remove finished session state."`
	Restore     RestoreCmd     `cmd:"" help:"Restore a swarm from a session's snapshot."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
	RootDir  string `name:"root-dir" help:"SWARM_HOME override; defaults to $SWARM_HOME or ~/.swarmkit." type:"path"`
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("swarmctl"),
		kong.Description("swarmkit - declarative multi-agent orchestration"),
		kong.UsageOnError(),
	)

	level, err := parseLogLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	err = kctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
