package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/observability"
	"github.com/kestrelai/swarmkit/snapshot"
)

// StartCmd runs a swarm against a prompt, either once (--prompt) or as an
// interactive REPL (--interactive), per spec.md §6.
type StartCmd struct {
	Config string `arg:"" optional:"" help:"Path to the swarm config file." type:"path"`

	Prompt      string `short:"p" help:"Run once against this prompt, non-interactively."`
	Interactive string `short:"i" help:"Start an interactive session, optionally seeded with this first prompt."`
	Vibe        bool   `help:"Skip tool-permission prompts (trust the agent's tool calls)."`
	StreamLogs  bool   `name:"stream-logs" help:"Print LogStream events to stderr as they occur."`
	Debug       bool   `help:"Enable debug-level logging for this run."`
	Worktree    string `short:"w" help:"Run inside an isolated worktree directory (optional name)." optional:""`
	SessionID   string `name:"session-id" help:"Resume this session ID instead of minting a new one."`
	Metrics     bool   `help:"Expose Prometheus metrics for this run."`
	MetricsAddr string `name:"metrics-addr" help:"Address to serve --metrics on." default:"127.0.0.1:9090"`
}

func (c *StartCmd) Run(cli *CLI) error {
	if c.Config == "" {
		return fmt.Errorf("swarmctl start: a config file path is required")
	}
	if c.Prompt != "" && c.Interactive != "" {
		return fmt.Errorf("swarmctl start: --prompt and --interactive are mutually exclusive")
	}

	if c.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if c.Vibe {
		slog.Warn("tool-permission prompts disabled for this run", "flag", "--vibe")
	}

	home, err := swarmHome(cli.RootDir)
	if err != nil {
		return err
	}

	if c.Worktree != "" {
		wtDir := filepath.Join(home, "worktrees", c.Worktree)
		if err := os.MkdirAll(wtDir, 0o755); err != nil {
			return fmt.Errorf("swarmctl start: creating worktree %q: %w", c.Worktree, err)
		}
		slog.Info("running inside worktree", "path", wtDir)
	}

	metrics, err := observability.NewManager(&observability.Config{Enabled: c.Metrics})
	if err != nil {
		return fmt.Errorf("swarmctl start: building metrics recorder: %w", err)
	}
	if metrics.Enabled() {
		mux := http.NewServeMux()
		mux.Handle(metrics.MetricsPath(), metrics.Handler())
		srv := &http.Server{Addr: c.MetricsAddr, Handler: mux}
		go func() {
			if srvErr := srv.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
				slog.Error("metrics server stopped", "error", srvErr)
			}
		}()
		defer srv.Close()
		slog.Info("serving metrics", "addr", c.MetricsAddr, "path", metrics.MetricsPath())
	}

	s, cfg, stream, err := buildSwarm(c.Config, metrics)
	if err != nil {
		return err
	}
	defer s.Close()

	sessionID := c.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}

	meta := &sessionMeta{
		ID:         sessionID,
		ConfigPath: c.Config,
		SwarmName:  cfg.Name,
		Status:     "running",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := saveSessionMeta(home, meta); err != nil {
		return fmt.Errorf("swarmctl start: recording session metadata: %w", err)
	}

	if c.StreamLogs {
		stream.Subscribe(logstream.Filter{}, func(e logstream.Event) {
			fmt.Fprintf(os.Stderr, "[%s] %s agent=%s swarm=%s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Agent, e.Swarm)
		})
	}

	logPath := sessionDir(home, sessionID) + "/events.jsonl"
	if logFile, logErr := appendLogFile(logPath); logErr == nil {
		defer logFile.Close()
		stream.Subscribe(logstream.Filter{}, func(e logstream.Event) {
			appendEvent(logFile, e)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var runErr error
	switch {
	case c.Prompt != "":
		runErr = c.runOnce(ctx, s, c.Prompt)
	default:
		runErr = c.runInteractive(ctx, s, c.Interactive)
	}

	meta.UpdatedAt = time.Now()
	if runErr != nil {
		meta.Status = "failed"
	} else {
		meta.Status = "completed"
	}
	if snap, snapErr := snapshot.Capture(s, map[string]any{"session_id": sessionID}); snapErr == nil {
		if data, serErr := snap.Serialize(); serErr == nil {
			_ = os.WriteFile(sessionDir(home, sessionID)+"/snapshot.json", data, 0o644)
		}
	}
	_ = saveSessionMeta(home, meta)

	return runErr
}

func (c *StartCmd) runOnce(ctx context.Context, s swarmExecutor, prompt string) error {
	reply, err := s.Execute(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func (c *StartCmd) runInteractive(ctx context.Context, s swarmExecutor, firstPrompt string) error {
	scanner := bufio.NewScanner(os.Stdin)
	prompt := firstPrompt
	for {
		if prompt == "" {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			prompt = scanner.Text()
		}
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			return nil
		}

		reply, err := s.Execute(ctx, prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Println(reply)
		}
		prompt = ""

		if ctx.Err() != nil {
			return nil
		}
	}
}

// swarmExecutor is the minimal surface StartCmd needs, narrowed from
// *swarm.Swarm so runOnce/runInteractive stay testable against a fake.
type swarmExecutor interface {
	Execute(ctx context.Context, prompt string) (string, error)
}

// appendLogFile opens path for append, creating its parent directory and
// the file itself if necessary, so WatchCmd has a durable per-session log
// to tail across process boundaries.
func appendLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func appendEvent(f *os.File, e logstream.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	f.Write(append(data, '\n'))
}
